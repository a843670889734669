// Package store persists parameter values, MIDI device
// configurations and permission grants as JSON documents under the
// user config directory. It implements the params and midimap
// gateway interfaces.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"fxrack/midimap"
)

const (
	parametersFile = "parameters.json"
	devicesFile    = "devices.json"
	stateFile      = "state.json"
)

// Store reads and writes JSON files in one directory. Writes are
// whole-file and last-write-wins.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates a store rooted at dir. The directory is created on the
// first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns ~/.config/fxrack.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "fxrack"), nil
}

// midiState is the small non-per-device record: last active device
// and per-origin permission grants.
type midiState struct {
	LastActiveDevice string          `json:"lastActiveDevice,omitempty"`
	Permissions      map[string]bool `json:"permissions,omitempty"`
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0644)
}

// LoadParameters implements params.Gateway.
func (s *Store) LoadParameters() (map[string]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]map[string]float64)
	if err := s.readJSON(parametersFile, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// SaveParameters implements params.Gateway.
func (s *Store) SaveParameters(values map[string]map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(parametersFile, values)
}

// LoadDeviceConfigurations returns all saved device configs keyed by
// device id.
func (s *Store) LoadDeviceConfigurations() (map[string]midimap.DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDevices()
}

func (s *Store) loadDevices() (map[string]midimap.DeviceConfig, error) {
	configs := make(map[string]midimap.DeviceConfig)
	if err := s.readJSON(devicesFile, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// SaveDeviceConfiguration replaces one device's saved mappings.
func (s *Store) SaveDeviceConfiguration(device midimap.Device, mappings []midimap.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs, err := s.loadDevices()
	if err != nil {
		return err
	}
	configs[device.ID] = midimap.DeviceConfig{Device: device, Mappings: mappings}
	return s.writeJSON(devicesFile, configs)
}

// SaveMapping appends one mapping to a device's config, creating the
// config if needed. An identical binding already on file is left
// alone so repeated saves stay idempotent.
func (s *Store) SaveMapping(device midimap.Device, m midimap.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs, err := s.loadDevices()
	if err != nil {
		return err
	}
	cfg, ok := configs[device.ID]
	if !ok {
		cfg = midimap.DeviceConfig{Device: device}
	}
	for _, existing := range cfg.Mappings {
		if existing.TargetID() == m.TargetID() && existing.Key() == m.Key() {
			return nil
		}
	}
	cfg.Mappings = append(cfg.Mappings, m)
	configs[device.ID] = cfg
	return s.writeJSON(devicesFile, configs)
}

// RemoveMapping deletes one mapping from a device's config, matching
// by id first and by binding as a fallback.
func (s *Store) RemoveMapping(deviceID string, m midimap.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	configs, err := s.loadDevices()
	if err != nil {
		return err
	}
	cfg, ok := configs[deviceID]
	if !ok {
		return nil
	}
	for i, existing := range cfg.Mappings {
		if existing.ID == m.ID || (existing.TargetID() == m.TargetID() && existing.Key() == m.Key()) {
			cfg.Mappings = append(cfg.Mappings[:i], cfg.Mappings[i+1:]...)
			break
		}
	}
	configs[deviceID] = cfg
	return s.writeJSON(devicesFile, configs)
}

// LastActiveDevice returns the saved device id, if any.
func (s *Store) LastActiveDevice() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return "", false, err
	}
	return st.LastActiveDevice, st.LastActiveDevice != "", nil
}

// SetLastActiveDevice records the device to reconnect to next session.
func (s *Store) SetLastActiveDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return err
	}
	st.LastActiveDevice = id
	return s.writeJSON(stateFile, st)
}

// ClearLastActiveDevice forgets the reconnect target.
func (s *Store) ClearLastActiveDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return err
	}
	st.LastActiveDevice = ""
	return s.writeJSON(stateFile, st)
}

// Permission reads a per-origin grant. present is false when the
// origin has never been recorded.
func (s *Store) Permission(origin string) (granted, present bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return false, false, err
	}
	granted, present = st.Permissions[origin]
	return granted, present, nil
}

// SavePermission records a per-origin grant.
func (s *Store) SavePermission(origin string, granted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return err
	}
	if st.Permissions == nil {
		st.Permissions = make(map[string]bool)
	}
	st.Permissions[origin] = granted
	return s.writeJSON(stateFile, st)
}

// ClearAllConfigurations wipes every device configuration and all
// permission grants. The last-active record is governed separately.
func (s *Store) ClearAllConfigurations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(filepath.Join(s.dir, devicesFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	var st midiState
	if err := s.readJSON(stateFile, &st); err != nil {
		return err
	}
	st.Permissions = nil
	return s.writeJSON(stateFile, st)
}
