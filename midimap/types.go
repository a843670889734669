// Package midimap connects MIDI hardware controls to effect toggles
// and parameters: device lifecycle, message decoding, learn mode, and
// mapping storage and dispatch.
package midimap

import (
	"fmt"
	"time"
)

// MidiType classifies an incoming message for mapping purposes.
// Unknown activity is recorded while learning but never matches a
// mapping.
type MidiType string

const (
	TypeNote    MidiType = "note"
	TypeControl MidiType = "control"
	TypeUnknown MidiType = "unknown"
)

// MappingType says what a mapping drives.
type MappingType string

const (
	MappingToggle    MappingType = "toggle"
	MappingParameter MappingType = "parameter"
)

// Key identifies a physical control: message type, channel (1-16) and
// note or CC number. Mappings are indexed by Key for O(1) dispatch.
type Key struct {
	Type    MidiType
	Channel uint8
	Value   uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d-%d", k.Type, k.Channel, k.Value)
}

// Mapping ties one physical control to one UI target. Exactly one of
// Note/CC is set, consistent with MidiType.
type Mapping struct {
	ID        string      `json:"id"`
	Type      MappingType `json:"type"`
	Effect    string      `json:"effect"`
	Parameter string      `json:"parameter,omitempty"`
	MidiType  MidiType    `json:"midiType"`
	Channel   uint8       `json:"midiChannel"`
	Note      *uint8      `json:"midiNote,omitempty"`
	CC        *uint8      `json:"midiCC,omitempty"`
}

// Key derives the mapping's dispatch index.
func (m Mapping) Key() Key {
	k := Key{Type: m.MidiType, Channel: m.Channel}
	switch {
	case m.MidiType == TypeNote && m.Note != nil:
		k.Value = *m.Note
	case m.MidiType == TypeControl && m.CC != nil:
		k.Value = *m.CC
	}
	return k
}

// TargetID reconstructs the UI target id this mapping drives.
func (m Mapping) TargetID() string {
	if m.Type == MappingParameter {
		return fmt.Sprintf("effect-parameter-%s-%s", m.Effect, m.Parameter)
	}
	return fmt.Sprintf("effect-toggle-%s", m.Effect)
}

// sameBinding reports whether two mappings tie the same physical
// control to the same target. Used for duplicate rejection and
// idempotent restore.
func sameBinding(a, b Mapping) bool {
	return a.TargetID() == b.TargetID() && a.Key() == b.Key()
}

// Device is one MIDI input as reported by the host environment.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceConfig is the durable per-device record: the device identity
// and its saved mappings.
type DeviceConfig struct {
	Device   Device    `json:"device"`
	Mappings []Mapping `json:"mappings"`
}

// Activity is the ephemeral last-seen hardware event, overwritten on
// each qualifying message while learning and cleared when learning
// stops or the device disconnects.
type Activity struct {
	Type      MidiType
	Message   string
	Timestamp time.Time
	Raw       [3]byte
	Channel   uint8 // 1-16
	Value     uint8 // note or CC number
	Level     uint8 // velocity or CC value
	Release   bool  // Note-Off or Note-On with velocity 0
}

// ConnectionState is a snapshot of the engine for UI consumption.
// IsLinked is derived: true whenever at least one mapping exists, and
// keeps the hardware listener attached outside learn mode.
type ConnectionState struct {
	HasPermission       bool
	AvailableDevices    []Device
	IsConnected         bool
	ConnectedDeviceID   string
	ConnectedDeviceName string
	IsLearning          bool
	IsLinked            bool
}

// decode turns a raw status/data1/data2 triplet into a typed activity.
// Program Change returns nil: never recorded, never dispatched.
func decode(status, data1, data2 byte) *Activity {
	act := &Activity{
		Timestamp: time.Now(),
		Raw:       [3]byte{status, data1, data2},
		Channel:   status&0x0F + 1,
		Value:     data1,
		Level:     data2,
	}
	switch status & 0xF0 {
	case 0x90:
		act.Type = TypeNote
		if data2 == 0 {
			act.Release = true
			act.Message = fmt.Sprintf("Note Off ch%d note %d", act.Channel, data1)
		} else {
			act.Message = fmt.Sprintf("Note On ch%d note %d vel %d", act.Channel, data1, data2)
		}
	case 0x80:
		act.Type = TypeNote
		act.Release = true
		act.Message = fmt.Sprintf("Note Off ch%d note %d", act.Channel, data1)
	case 0xB0:
		act.Type = TypeControl
		act.Message = fmt.Sprintf("CC ch%d cc %d val %d", act.Channel, data1, data2)
	case 0xC0:
		return nil
	case 0xE0:
		act.Type = TypeControl
		act.Message = fmt.Sprintf("Pitch Bend ch%d", act.Channel)
	default:
		act.Type = TypeUnknown
		act.Message = fmt.Sprintf("Unknown status 0x%02X", status)
	}
	return act
}
