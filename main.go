package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"fxrack/chain"
	"fxrack/debug"
	"fxrack/midimap"
	"fxrack/params"
	"fxrack/store"
	"fxrack/tui"
)

const fallbackSampleRate = 44100

// fileElement adapts a beep streamer to the chain's media interface.
type fileElement struct {
	id       string
	streamer beep.Streamer
}

func (e *fileElement) ID() string { return e.id }

func (e *fileElement) Stream(buf [][2]float64) (int, bool) {
	return e.streamer.Stream(buf)
}

type staticProvider struct {
	elements []chain.MediaElement
}

func (p *staticProvider) Elements() []chain.MediaElement { return p.elements }

func main() {
	if os.Getenv("FXRACK_DEBUG") != "" {
		debug.Enable()
	}
	defer debug.Disable()

	dir, err := store.DefaultDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	st := store.New(dir)

	ps := params.NewStore(st)
	ps.Initialize()

	provider := &staticProvider{}
	sampleRate := fallbackSampleRate
	var element *fileElement
	var format beep.Format

	// Optional WAV file: played on loop through the rack.
	if len(os.Args) > 1 {
		file, err := os.Open(os.Args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		streamer, decoded, err := wav.Decode(file)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		format = decoded
		sampleRate = int(format.SampleRate)
		element = &fileElement{id: os.Args[1], streamer: beep.Loop(-1, streamer)}
		provider.elements = append(provider.elements, element)
	}

	manager := chain.NewManager(ps, provider, sampleRate)

	// Engine and chain notifications converge on one redraw channel.
	events := make(chan struct{}, 8)
	poke := func() {
		select {
		case events <- struct{}{}:
		default:
		}
	}

	engine := midimap.New(midimap.NewHardwareAccess(), st, midimap.Callbacks{
		ConnectionChanged: func(bool, string) { poke() },
		PermissionChanged: func(bool) { poke() },
		DevicesScanned:    func([]midimap.Device) { poke() },
		Activity:          func(midimap.Activity) { poke() },
		MappingCreated:    func(midimap.Mapping) { poke() },
		MappingTriggered: func(m midimap.Mapping, value float64) {
			applyMapping(manager, m, value)
			poke()
		},
	})

	manager.SetToggleCallback(func(string, bool) { poke() })
	unsubscribe := ps.Subscribe(func(string, string, float64) { poke() })
	defer unsubscribe()

	engine.ReconnectLastActive()

	if element != nil {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		speaker.Play(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
			// No effects enabled yet means no graph; play the file dry.
			if manager.Render(samples) {
				return len(samples), true
			}
			return element.Stream(samples)
		}))
	}

	fmt.Println("fxrack")
	fmt.Println("Connect a MIDI controller and press c, then m to learn")
	fmt.Println("")

	m := tui.NewModel(manager, ps, engine, events)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	engine.Disconnect(false, false)
}

// applyMapping routes a triggered mapping to the chain: toggles carry
// 0 or 1, parameters carry the scaled 0-100 value.
func applyMapping(manager *chain.Manager, m midimap.Mapping, value float64) {
	switch m.Type {
	case midimap.MappingToggle:
		if value >= 1 {
			manager.EnableEffect(m.Effect)
		} else {
			manager.DisableEffect(m.Effect)
		}
	case midimap.MappingParameter:
		manager.UpdateEffectParameter(m.Effect, m.Parameter, value)
	}
}
