package params

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"fxrack/effects"
)

type fakeGateway struct {
	mu      sync.Mutex
	loaded  map[string]map[string]float64
	loadErr error
	saved   map[string]map[string]float64
	saves   chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{saves: make(chan struct{}, 16)}
}

func (g *fakeGateway) LoadParameters() (map[string]map[string]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded, g.loadErr
}

func (g *fakeGateway) SaveParameters(values map[string]map[string]float64) error {
	g.mu.Lock()
	g.saved = values
	g.mu.Unlock()
	g.saves <- struct{}{}
	return nil
}

func (g *fakeGateway) lastSaved() map[string]map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saved
}

func TestInitializeDefaults(t *testing.T) {
	s := NewStore(nil)
	s.Initialize()

	v, ok := s.GetParameter(effects.Distortion, "amount")
	if !ok || v != 30 {
		t.Fatalf("distortion amount = %v, ok=%v, want default 30", v, ok)
	}
	v, ok = s.GetParameter(effects.Reverb, "roomSize")
	if !ok || v != 50 {
		t.Fatalf("reverb roomSize = %v, ok=%v, want default 50", v, ok)
	}
}

func TestInitializeOverlaysValidPersistedValues(t *testing.T) {
	g := newFakeGateway()
	g.loaded = map[string]map[string]float64{
		effects.Distortion: {"amount": 72},
		effects.Reverb:     {"roomSize": 400, "mix": math.NaN()}, // both invalid
		"unknownfx":        {"whatever": 1},
	}
	s := NewStore(g)
	s.Initialize()

	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 72 {
		t.Fatalf("amount = %v, want persisted 72", v)
	}
	if v, _ := s.GetParameter(effects.Reverb, "roomSize"); v != 50 {
		t.Fatalf("roomSize = %v, want default 50 (persisted value out of range)", v)
	}
	if v, _ := s.GetParameter(effects.Reverb, "mix"); v != 30 {
		t.Fatalf("mix = %v, want default 30 (persisted value not finite)", v)
	}
	if _, ok := s.GetParameter("unknownfx", "whatever"); ok {
		t.Fatal("unknown persisted effect leaked into the store")
	}
}

func TestInitializeIdempotent(t *testing.T) {
	s := NewStore(nil)
	s.Initialize()
	if !s.SetParameter(effects.Distortion, "amount", 60) {
		t.Fatal("set failed")
	}
	s.Initialize() // must not reset to defaults
	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 60 {
		t.Fatalf("amount = %v after re-initialize, want 60", v)
	}
}

func TestInitializeSurvivesLoadError(t *testing.T) {
	g := newFakeGateway()
	g.loadErr = errors.New("storage gone")
	s := NewStore(g)
	s.Initialize()
	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 30 {
		t.Fatalf("amount = %v, want default 30", v)
	}
}

func TestSetParameterValidation(t *testing.T) {
	s := NewStore(nil)
	s.Initialize()

	cases := []struct {
		name      string
		effect    string
		parameter string
		value     float64
	}{
		{"unknown effect", "nope", "amount", 10},
		{"unknown parameter", effects.Distortion, "nope", 10},
		{"below min", effects.Distortion, "amount", -1},
		{"above max", effects.Distortion, "amount", 101},
		{"NaN", effects.Distortion, "amount", math.NaN()},
		{"+Inf", effects.Distortion, "amount", math.Inf(1)},
	}
	for _, tc := range cases {
		if s.SetParameter(tc.effect, tc.parameter, tc.value) {
			t.Errorf("%s: set accepted", tc.name)
		}
	}
	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 30 {
		t.Fatalf("amount = %v after rejected sets, want untouched 30", v)
	}
}

func TestListenersNotifiedAndContained(t *testing.T) {
	s := NewStore(nil)
	s.Initialize()

	var got []string
	unsub := s.Subscribe(func(effect, parameter string, value float64) {
		got = append(got, effect+"."+parameter)
	})
	s.Subscribe(func(effect, parameter string, value float64) {
		panic("bad listener")
	})
	var after int
	s.Subscribe(func(effect, parameter string, value float64) {
		after++
	})

	if !s.SetParameter(effects.Reverb, "mix", 40) {
		t.Fatal("set failed despite panicking listener")
	}
	if len(got) != 1 || got[0] != "reverb.mix" {
		t.Fatalf("listener saw %v", got)
	}
	if after != 1 {
		t.Fatalf("listener after the panicking one ran %d times, want 1", after)
	}

	unsub()
	s.SetParameter(effects.Reverb, "mix", 45)
	if len(got) != 1 {
		t.Fatal("unsubscribed listener was still notified")
	}
}

func TestPersistenceIsFireAndForget(t *testing.T) {
	g := newFakeGateway()
	s := NewStore(g)
	s.Initialize()

	if !s.SetParameter(effects.Filter, "lowPassFreq", 65) {
		t.Fatal("set failed")
	}
	select {
	case <-g.saves:
	case <-time.After(2 * time.Second):
		t.Fatal("no persistence write observed")
	}
	saved := g.lastSaved()
	if saved[effects.Filter]["lowPassFreq"] != 65 {
		t.Fatalf("persisted snapshot = %v", saved[effects.Filter])
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore(nil)
	s.Initialize()

	m := s.GetEffectParameters(effects.Distortion)
	m["amount"] = -5
	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 30 {
		t.Fatal("store mutated through GetEffectParameters result")
	}

	all := s.GetAllParameters()
	all[effects.Distortion]["amount"] = -5
	if v, _ := s.GetParameter(effects.Distortion, "amount"); v != 30 {
		t.Fatal("store mutated through GetAllParameters result")
	}
}
