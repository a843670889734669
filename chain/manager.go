// Package chain maintains, per media element, a linear processing
// chain: source, then the enabled effects in fixed priority order,
// then the shared destination.
package chain

import (
	"sync"

	"fxrack/debug"
	"fxrack/effects"
	"fxrack/graph"
	"fxrack/params"
)

// Priority is the fixed processing order. Distortion sees the clean
// signal, the filter shapes the combined distorted and reverberant
// signal last. Activation order never changes this.
var Priority = []string{effects.Distortion, effects.Reverb, effects.Filter}

// MediaElement is one observed media source. Stream has the shape of
// graph.StreamFunc so elements plug straight into source nodes.
type MediaElement interface {
	ID() string
	Stream(buf [][2]float64) (n int, ok bool)
}

// MediaProvider supplies the live element list on demand. The manager
// never polls; callers tell it when new elements appear.
type MediaProvider interface {
	Elements() []MediaElement
}

// Manager owns the graph context, one source node per media element
// and the live effect nodes. Nothing else mutates them.
type Manager struct {
	mu         sync.Mutex
	store      *params.Store
	provider   MediaProvider
	sampleRate int

	ctx     *graph.Context
	enabled map[string]bool
	sources map[string]*graph.Node
	live    map[string]map[string]*effects.EffectNode

	onToggle func(effect string, enabled bool)
}

// NewManager creates a chain manager. The graph context is created
// lazily on the first enable.
func NewManager(store *params.Store, provider MediaProvider, sampleRate int) *Manager {
	return &Manager{
		store:      store,
		provider:   provider,
		sampleRate: sampleRate,
		enabled:    make(map[string]bool),
		sources:    make(map[string]*graph.Node),
		live:       make(map[string]map[string]*effects.EffectNode),
	}
}

// SetToggleCallback registers the effect-toggled notification.
func (m *Manager) SetToggleCallback(fn func(effect string, enabled bool)) {
	m.mu.Lock()
	m.onToggle = fn
	m.mu.Unlock()
}

// Context returns the graph context, nil before the first enable.
func (m *Manager) Context() *graph.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// Render pulls one block through the graph. Rebuilds hold the same
// lock, so the topology never changes mid-block. Returns false when no
// context exists yet; out is untouched in that case.
func (m *Manager) Render(out [][2]float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return false
	}
	m.ctx.Render(out)
	return true
}

// EnableEffect turns an effect on and rebuilds every chain. Returns
// false without side effects for unknown or already enabled effects.
func (m *Manager) EnableEffect(effect string) bool {
	if _, ok := effects.Definition(effect); !ok {
		debug.Warn("chain", "enable: unknown effect %q", effect)
		return false
	}

	m.mu.Lock()
	if m.enabled[effect] {
		m.mu.Unlock()
		return false
	}
	m.enabled[effect] = true
	if m.ctx == nil {
		m.ctx = graph.NewContext(m.sampleRate)
	}
	m.wireNewElements()
	m.rebuild()
	fn := m.onToggle
	m.mu.Unlock()

	if fn != nil {
		fn(effect, true)
	}
	return true
}

// DisableEffect turns an effect off and rebuilds every chain.
func (m *Manager) DisableEffect(effect string) bool {
	m.mu.Lock()
	if !m.enabled[effect] {
		m.mu.Unlock()
		return false
	}
	delete(m.enabled, effect)
	m.rebuild()
	fn := m.onToggle
	m.mu.Unlock()

	if fn != nil {
		fn(effect, false)
	}
	return true
}

// EnabledEffects returns the enabled set in priority order.
func (m *Manager) EnabledEffects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, name := range Priority {
		if m.enabled[name] {
			out = append(out, name)
		}
	}
	return out
}

// UpdateEffectParameter stores the value and, when the effect is live,
// applies it to the running nodes too, so the live graph and the "next
// session" value stay consistent.
func (m *Manager) UpdateEffectParameter(effect, parameter string, value float64) bool {
	if !m.store.SetParameter(effect, parameter, value) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled[effect] {
		return true
	}
	for _, nodes := range m.live {
		if node := nodes[effect]; node != nil {
			effects.UpdateParameter(node, parameter, value)
		}
	}
	return true
}

// HandleNewMediaElements wires elements that appeared since the last
// scan into the current topology. Already wired elements are left
// untouched.
func (m *Manager) HandleNewMediaElements() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return
	}
	fresh := m.wireNewElements()
	for _, id := range fresh {
		m.buildElement(id)
	}
}

// LiveEffects reports which effects currently have a live node for an
// element, in priority order. Empty before the context exists.
func (m *Manager) LiveEffects(elementID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := m.live[elementID]
	var out []string
	for _, name := range Priority {
		if nodes[name] != nil {
			out = append(out, name)
		}
	}
	return out
}

// wireNewElements creates source nodes for unseen elements and
// returns their ids. Caller holds the lock.
func (m *Manager) wireNewElements() []string {
	if m.provider == nil || m.ctx == nil {
		return nil
	}
	var fresh []string
	for _, el := range m.provider.Elements() {
		id := el.ID()
		if _, ok := m.sources[id]; ok {
			continue
		}
		m.sources[id] = m.ctx.NewSource(el.Stream)
		m.live[id] = make(map[string]*effects.EffectNode)
		fresh = append(fresh, id)
		debug.Log("chain", "wired media element %s", id)
	}
	return fresh
}

// rebuild tears down and reconstructs every element's chain. All live
// effect nodes are discarded and recreated, so the graph is always a
// fresh, consistent topology. Caller holds the lock.
func (m *Manager) rebuild() {
	if m.ctx == nil {
		return
	}
	for id := range m.sources {
		m.teardownElement(id)
		m.buildElement(id)
	}
}

func (m *Manager) teardownElement(id string) {
	m.sources[id].Disconnect()
	for _, node := range m.live[id] {
		node.Detach()
	}
	m.live[id] = make(map[string]*effects.EffectNode)
}

// buildElement threads one element's chain: source, enabled effects in
// priority order with their stored parameters applied, destination.
// A failed factory skips that effect only.
func (m *Manager) buildElement(id string) {
	tail := m.sources[id]
	for _, name := range Priority {
		if !m.enabled[name] {
			continue
		}
		node := effects.Create(m.ctx, name)
		if node == nil {
			debug.Warn("chain", "element %s: %s unavailable, skipping", id, name)
			continue
		}
		for parameter, value := range m.store.GetEffectParameters(name) {
			effects.UpdateParameter(node, parameter, value)
		}
		tail.Connect(node.InputTap())
		tail = node.OutputTap()
		m.live[id][name] = node
	}
	tail.Connect(m.ctx.Destination())
}
