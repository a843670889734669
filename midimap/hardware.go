package midimap

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// HardwareAccess implements Access on top of gomidi. Port names are
// used as device ids: they are stable across reconnects, which is
// what mapping restore keys on.
type HardwareAccess struct{}

func NewHardwareAccess() *HardwareAccess {
	return &HardwareAccess{}
}

// Request grants access. Desktop MIDI has no permission prompt, so
// this only verifies the driver is usable by touching the port list.
func (h *HardwareAccess) Request() error {
	gomidi.GetInPorts()
	return nil
}

// Devices enumerates MIDI input ports.
func (h *HardwareAccess) Devices() ([]Device, error) {
	var out []Device
	for _, port := range gomidi.GetInPorts() {
		out = append(out, Device{ID: port.String(), Name: port.String()})
	}
	return out, nil
}

// Listen attaches a raw message callback to one input port.
func (h *HardwareAccess) Listen(deviceID string, fn func(status, data1, data2 byte)) (func(), error) {
	var port drivers.In
	for _, p := range gomidi.GetInPorts() {
		if p.String() == deviceID {
			port = p
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
		raw := msg.Bytes()
		if len(raw) == 0 {
			return
		}
		var data1, data2 byte
		if len(raw) > 1 {
			data1 = raw[1]
		}
		if len(raw) > 2 {
			data2 = raw[2]
		}
		fn(raw[0], data1, data2)
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return stop, nil
}
