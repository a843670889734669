// Package params is the single source of truth for effect parameter
// values, whether or not the effect is currently enabled.
package params

import (
	"math"
	"sync"

	"fxrack/debug"
	"fxrack/effects"
)

// Gateway persists parameter values. Implementations may fail; the
// store logs failures and carries on with in-memory state.
type Gateway interface {
	LoadParameters() (map[string]map[string]float64, error)
	SaveParameters(values map[string]map[string]float64) error
}

// Listener is notified after a parameter value changes.
type Listener func(effect, parameter string, value float64)

// Store holds validated parameter values keyed by effect and
// parameter name.
type Store struct {
	mu          sync.Mutex
	gateway     Gateway // may be nil
	values      map[string]map[string]float64
	listeners   map[int]Listener
	nextID      int
	initialized bool
}

// NewStore creates a store backed by gateway. A nil gateway keeps
// values in memory only.
func NewStore(gateway Gateway) *Store {
	return &Store{
		gateway:   gateway,
		values:    make(map[string]map[string]float64),
		listeners: make(map[int]Listener),
	}
}

// Initialize loads catalog defaults and overlays persisted values
// that still validate. Safe to call more than once; only the first
// call has any effect.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.initialized = true

	for _, def := range effects.Catalog() {
		vals := make(map[string]float64, len(def.Parameters))
		for _, p := range def.Parameters {
			vals[p.Name] = p.Default
		}
		s.values[def.Name] = vals
	}

	if s.gateway == nil {
		return
	}
	saved, err := s.gateway.LoadParameters()
	if err != nil {
		debug.Warn("params", "load persisted values: %v", err)
		return
	}
	for effect, vals := range saved {
		for parameter, value := range vals {
			def, ok := effects.Parameter(effect, parameter)
			if !ok || !validValue(def, value) {
				debug.Warn("params", "dropping persisted %s.%s=%v", effect, parameter, value)
				continue
			}
			s.values[effect][parameter] = value
		}
	}
}

func validValue(def effects.ParameterDefinition, value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && value >= def.Min && value <= def.Max
}

// SetParameter validates and stores a value. On success listeners are
// notified and a persistence write is scheduled; the caller never
// waits on storage. Returns false without mutating on unknown names,
// out-of-range or non-finite values.
func (s *Store) SetParameter(effect, parameter string, value float64) bool {
	def, ok := effects.Parameter(effect, parameter)
	if !ok {
		debug.Warn("params", "set %s.%s: unknown effect or parameter", effect, parameter)
		return false
	}
	if !validValue(def, value) {
		debug.Warn("params", "set %s.%s=%v: outside [%v,%v] or not finite", effect, parameter, value, def.Min, def.Max)
		return false
	}

	s.mu.Lock()
	vals, ok := s.values[effect]
	if !ok {
		vals = make(map[string]float64)
		s.values[effect] = vals
	}
	vals[parameter] = value
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		notify(l, effect, parameter, value)
	}
	go s.persist()
	return true
}

// notify shields the store and the remaining listeners from a panic
// in one listener.
func notify(l Listener, effect, parameter string, value float64) {
	defer func() {
		if r := recover(); r != nil {
			debug.Warn("params", "listener panic on %s.%s: %v", effect, parameter, r)
		}
	}()
	l(effect, parameter, value)
}

func (s *Store) persist() {
	if s.gateway == nil {
		return
	}
	snapshot := s.GetAllParameters()
	if err := s.gateway.SaveParameters(snapshot); err != nil {
		debug.Warn("params", "persist: %v", err)
	}
}

// GetParameter reads one value.
func (s *Store) GetParameter(effect, parameter string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.values[effect]
	if !ok {
		return 0, false
	}
	v, ok := vals[parameter]
	return v, ok
}

// GetEffectParameters returns a copy of one effect's values.
func (s *Store) GetEffectParameters(effect string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.values[effect]))
	for k, v := range s.values[effect] {
		out[k] = v
	}
	return out
}

// GetAllParameters returns an independent copy of every value.
func (s *Store) GetAllParameters() map[string]map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]float64, len(s.values))
	for effect, vals := range s.values {
		copied := make(map[string]float64, len(vals))
		for k, v := range vals {
			copied[k] = v
		}
		out[effect] = copied
	}
	return out
}

// Subscribe registers a change listener and returns its removal
// function. Notification order across listeners is unspecified.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
