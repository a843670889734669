package midimap

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fxrack/debug"
)

var ErrDeviceNotFound = errors.New("midimap: device not found")

// Access is the host MIDI environment: request access, enumerate
// inputs, attach a raw message callback to one input.
type Access interface {
	Request() error
	Devices() ([]Device, error)
	Listen(deviceID string, fn func(status, data1, data2 byte)) (stop func(), err error)
}

// Gateway is the durable storage collaborator. Every call may fail;
// failures are logged and treated as "nothing persisted", never
// surfaced to the UI layer.
type Gateway interface {
	LoadDeviceConfigurations() (map[string]DeviceConfig, error)
	SaveDeviceConfiguration(device Device, mappings []Mapping) error
	SaveMapping(device Device, m Mapping) error
	RemoveMapping(deviceID string, m Mapping) error
	LastActiveDevice() (id string, ok bool, err error)
	SetLastActiveDevice(id string) error
	ClearLastActiveDevice() error
	Permission(origin string) (granted, present bool, err error)
	SavePermission(origin string, granted bool) error
	ClearAllConfigurations() error
}

// Callbacks are the core-to-UI notifications. Any field may be nil.
// MappingTriggered doubles as the effect-control dispatch path, so
// MIDI and UI changes converge on the same state updates.
type Callbacks struct {
	ConnectionChanged func(connected bool, deviceName string)
	PermissionChanged func(granted bool)
	DevicesScanned    func(devices []Device)
	Activity          func(act Activity)
	MappingTriggered  func(m Mapping, value float64)
	MappingCreated    func(m Mapping)
}

// Engine owns the MIDI connection state machine and the mapping
// table. The hardware input handle is owned here exclusively.
type Engine struct {
	access  Access
	gateway Gateway
	cb      Callbacks

	mu            sync.Mutex
	hasPermission bool
	devices       []Device
	connected     bool
	device        Device
	learning      bool
	mappings      map[Key][]Mapping
	activity      *Activity
	stop          func()
}

// New creates an engine. gateway may be nil for a memory-only engine.
func New(access Access, gateway Gateway, cb Callbacks) *Engine {
	return &Engine{
		access:   access,
		gateway:  gateway,
		cb:       cb,
		mappings: make(map[Key][]Mapping),
	}
}

// State returns a snapshot of the connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	devices := make([]Device, len(e.devices))
	copy(devices, e.devices)
	return ConnectionState{
		HasPermission:       e.hasPermission,
		AvailableDevices:    devices,
		IsConnected:         e.connected,
		ConnectedDeviceID:   e.device.ID,
		ConnectedDeviceName: e.device.Name,
		IsLearning:          e.learning,
		IsLinked:            e.linkedLocked(),
	}
}

func (e *Engine) linkedLocked() bool { return len(e.mappings) > 0 }

// RequestPermission asks the host for MIDI access. On grant the device
// list is scanned and published. The grant/deny outcome is persisted
// per origin when one is supplied; storage failures are fail-open and
// the in-memory state still applies.
func (e *Engine) RequestPermission(origin string) bool {
	err := e.access.Request()
	granted := err == nil
	if err != nil {
		debug.Warn("midi", "permission denied: %v", err)
	}

	e.mu.Lock()
	e.hasPermission = granted
	e.mu.Unlock()

	if origin != "" && e.gateway != nil {
		if serr := e.gateway.SavePermission(origin, granted); serr != nil {
			debug.Warn("midi", "persist permission for %s: %v", origin, serr)
		}
	}
	if granted {
		e.ScanDevices()
	}
	if e.cb.PermissionChanged != nil {
		e.cb.PermissionChanged(granted)
	}
	return granted
}

// ScanDevices refreshes the available device list and publishes it.
// On failure the previous scan is kept.
func (e *Engine) ScanDevices() []Device {
	devices, err := e.access.Devices()
	if err != nil {
		debug.Warn("midi", "device scan: %v", err)
		e.mu.Lock()
		defer e.mu.Unlock()
		out := make([]Device, len(e.devices))
		copy(out, e.devices)
		return out
	}

	e.mu.Lock()
	e.devices = devices
	e.mu.Unlock()

	out := make([]Device, len(devices))
	copy(out, devices)
	if e.cb.DevicesScanned != nil {
		e.cb.DevicesScanned(out)
	}
	return out
}

// ConnectToDevice connects to a device from the last scan. Any prior
// connection is torn down first. Saved mappings for this device id
// are restored idempotently, and the device is recorded as last
// active so a later session can reconnect.
func (e *Engine) ConnectToDevice(deviceID string) error {
	e.mu.Lock()
	var dev Device
	found := false
	for _, d := range e.devices {
		if d.ID == deviceID {
			dev = d
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	toStop := e.teardownLocked()
	e.connected = true
	e.device = dev
	restored := 0
	if e.gateway != nil {
		if cfgs, err := e.gateway.LoadDeviceConfigurations(); err != nil {
			debug.Warn("midi", "load device configurations: %v", err)
		} else if cfg, ok := cfgs[deviceID]; ok {
			for _, m := range cfg.Mappings {
				if e.addMappingLocked(m) {
					restored++
				}
			}
		}
	}
	e.mu.Unlock()

	if toStop != nil {
		toStop()
	}
	if e.gateway != nil {
		if err := e.gateway.SetLastActiveDevice(deviceID); err != nil {
			debug.Warn("midi", "record last active device: %v", err)
		}
	}
	debug.Log("midi", "connected to %s, restored %d mappings", dev.Name, restored)
	e.updateListener()
	if e.cb.ConnectionChanged != nil {
		e.cb.ConnectionChanged(true, dev.Name)
	}
	return nil
}

// addMappingLocked inserts a mapping unless an identical binding is
// already present. Caller holds the lock.
func (e *Engine) addMappingLocked(m Mapping) bool {
	key := m.Key()
	for _, existing := range e.mappings[key] {
		if sameBinding(existing, m) {
			debug.Log("midi", "skipping duplicate mapping %s on %s", m.TargetID(), key)
			return false
		}
	}
	e.mappings[key] = append(e.mappings[key], m)
	return true
}

// ReconnectLastActive tries to restore the previous session's device.
// One-shot: failures are logged, never retried automatically.
func (e *Engine) ReconnectLastActive() bool {
	if e.gateway == nil {
		return false
	}
	id, ok, err := e.gateway.LastActiveDevice()
	if err != nil {
		debug.Warn("midi", "load last active device: %v", err)
		return false
	}
	if !ok {
		return false
	}
	e.ScanDevices()
	if err := e.ConnectToDevice(id); err != nil {
		debug.Log("midi", "last active device unavailable: %v", err)
		return false
	}
	return true
}

// Disconnect detaches the hardware listener and clears learning
// state, last activity and the in-memory mapping table. The two
// destructive flags independently clear the durable last-active
// record and all durable device configurations; both default paths
// (routine teardown) should pass false so reconnection can restore
// state later.
func (e *Engine) Disconnect(clearLastActive, clearAllConfigurations bool) {
	e.mu.Lock()
	toStop := e.teardownLocked()
	e.mu.Unlock()

	if toStop != nil {
		toStop()
	}
	if e.gateway != nil {
		if clearLastActive {
			if err := e.gateway.ClearLastActiveDevice(); err != nil {
				debug.Warn("midi", "clear last active device: %v", err)
			}
		}
		if clearAllConfigurations {
			if err := e.gateway.ClearAllConfigurations(); err != nil {
				debug.Warn("midi", "clear device configurations: %v", err)
			}
		}
	}
	if e.cb.ConnectionChanged != nil {
		e.cb.ConnectionChanged(false, "")
	}
}

// teardownLocked resets the in-memory connection. Returns the stop
// function to be called after the lock is released, since the driver
// may wait on an in-flight message callback.
func (e *Engine) teardownLocked() func() {
	toStop := e.stop
	e.stop = nil
	e.connected = false
	e.device = Device{}
	e.learning = false
	e.activity = nil
	e.mappings = make(map[Key][]Mapping)
	return toStop
}

// SetLearning toggles learn mode. Disabling clears the activity
// snapshot. The hardware listener is re-evaluated either way.
func (e *Engine) SetLearning(enabled bool) {
	e.mu.Lock()
	e.learning = enabled
	if !enabled {
		e.activity = nil
	}
	e.mu.Unlock()
	e.updateListener()
}

// Learning reports whether learn mode is active.
func (e *Engine) Learning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learning
}

// LastActivity returns the current activity snapshot, if any.
func (e *Engine) LastActivity() (Activity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activity == nil {
		return Activity{}, false
	}
	return *e.activity, true
}

type linkTarget struct {
	mappingType MappingType
	effect      string
	parameter   string
}

// parseTargetID understands "effect-toggle-<effect>" and
// "effect-parameter-<effect>-<parameter>". Only the first two
// segments are reserved; the parameter may itself contain hyphens.
func parseTargetID(id string) (linkTarget, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 3 || parts[0] != "effect" {
		return linkTarget{}, false
	}
	switch parts[1] {
	case "toggle":
		return linkTarget{mappingType: MappingToggle, effect: strings.Join(parts[2:], "-")}, true
	case "parameter":
		if len(parts) < 4 {
			return linkTarget{}, false
		}
		return linkTarget{
			mappingType: MappingParameter,
			effect:      parts[2],
			parameter:   strings.Join(parts[3:], "-"),
		}, true
	}
	return linkTarget{}, false
}

// RequestLink creates a mapping from the last learn-mode activity to
// the given UI target. Fails silently (logged, nothing created) when
// no activity is present, the activity is not note/control, the
// target id is malformed, or an identical mapping already exists.
func (e *Engine) RequestLink(targetID string) {
	e.mu.Lock()
	act := e.activity
	if act == nil {
		e.mu.Unlock()
		debug.Warn("midi", "link %s: no recent MIDI activity", targetID)
		return
	}
	if act.Type != TypeNote && act.Type != TypeControl {
		e.mu.Unlock()
		debug.Warn("midi", "link %s: activity type %s cannot be mapped", targetID, act.Type)
		return
	}
	target, ok := parseTargetID(targetID)
	if !ok {
		e.mu.Unlock()
		debug.Warn("midi", "link: malformed target id %q", targetID)
		return
	}

	m := Mapping{
		ID:       uuid.NewString(),
		Type:     target.mappingType,
		Effect:   target.effect,
		MidiType: act.Type,
		Channel:  act.Channel,
	}
	if target.mappingType == MappingParameter {
		m.Parameter = target.parameter
	}
	value := act.Value
	if act.Type == TypeNote {
		m.Note = &value
	} else {
		m.CC = &value
	}
	if !e.addMappingLocked(m) {
		e.mu.Unlock()
		return
	}
	dev := e.device
	e.mu.Unlock()

	if e.gateway != nil {
		if err := e.gateway.SaveMapping(dev, m); err != nil {
			debug.Warn("midi", "persist mapping: %v", err)
		}
	}
	e.updateListener()
	if e.cb.MappingCreated != nil {
		e.cb.MappingCreated(m)
	}
}

// RemoveSpecificMapping removes the first mapping stored under the
// MIDI key. Stacked mappings on the same key go one per call.
func (e *Engine) RemoveSpecificMapping(midiType MidiType, channel, value uint8) bool {
	key := Key{Type: midiType, Channel: channel, Value: value}

	e.mu.Lock()
	list := e.mappings[key]
	if len(list) == 0 {
		e.mu.Unlock()
		return false
	}
	removed := list[0]
	if len(list) == 1 {
		delete(e.mappings, key)
	} else {
		e.mappings[key] = list[1:]
	}
	dev := e.device
	e.mu.Unlock()

	if e.gateway != nil {
		if err := e.gateway.RemoveMapping(dev.ID, removed); err != nil {
			debug.Warn("midi", "persist mapping removal: %v", err)
		}
	}
	e.updateListener()
	return true
}

// Mappings returns a copy of all current mappings.
func (e *Engine) Mappings() []Mapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Mapping
	for _, list := range e.mappings {
		out = append(out, list...)
	}
	return out
}

// updateListener attaches or detaches the hardware input so the
// engine listens exactly when learning or linked. A closed input
// otherwise avoids needless event churn.
func (e *Engine) updateListener() {
	e.mu.Lock()
	should := e.connected && (e.learning || e.linkedLocked())
	var toStop func()
	needAttach := should && e.stop == nil
	if !should && e.stop != nil {
		toStop = e.stop
		e.stop = nil
	}
	deviceID := e.device.ID
	e.mu.Unlock()

	if toStop != nil {
		toStop()
	}
	if !needAttach {
		return
	}
	stop, err := e.access.Listen(deviceID, e.handleMessage)
	if err != nil {
		debug.Warn("midi", "attach listener to %s: %v", deviceID, err)
		return
	}
	e.mu.Lock()
	if e.connected && e.device.ID == deviceID && e.stop == nil {
		e.stop = stop
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	stop() // superseded while attaching; last call wins
}

type triggered struct {
	mapping Mapping
	value   float64
}

// handleMessage is the hardware callback: decode, dispatch matching
// mappings, and separately record the activity while learning.
func (e *Engine) handleMessage(status, data1, data2 byte) {
	act := decode(status, data1, data2)
	if act == nil {
		return
	}

	var hits []triggered
	e.mu.Lock()
	if act.Type == TypeNote || act.Type == TypeControl {
		key := Key{Type: act.Type, Channel: act.Channel, Value: act.Value}
		if !act.Release {
			for _, m := range e.mappings[key] {
				hits = append(hits, triggered{mapping: m, value: dispatchValue(m, *act)})
			}
		}
	}
	learning := e.learning
	if learning {
		e.activity = act
	}
	e.mu.Unlock()

	if e.cb.MappingTriggered != nil {
		for _, h := range hits {
			e.cb.MappingTriggered(h.mapping, h.value)
		}
	}
	if learning && e.cb.Activity != nil {
		e.cb.Activity(*act)
	}
}

// dispatchValue computes what a triggered mapping dispatches: toggles
// resolve to 0 or 1 at half scale, parameters scale 0-127 onto 0-100.
func dispatchValue(m Mapping, act Activity) float64 {
	if m.Type == MappingToggle {
		if act.Level < 64 {
			return 0
		}
		return 1
	}
	return math.Round(float64(act.Level) / 127 * 100)
}
