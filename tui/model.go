package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fxrack/chain"
	"fxrack/effects"
	"fxrack/midimap"
	"fxrack/params"
)

// row is one selectable line in the rack view: either an effect's
// toggle or one of its parameters.
type row struct {
	effect    string
	parameter string // empty for the toggle row
	label     string
	min, max  float64
	step      float64
}

func (r row) targetID() string {
	if r.parameter == "" {
		return "effect-toggle-" + r.effect
	}
	return "effect-parameter-" + r.effect + "-" + r.parameter
}

type Model struct {
	Chain  *chain.Manager
	Params *params.Store
	Engine *midimap.Engine
	Events chan struct{}

	rows     []row
	cursor   int
	status   string
	quitting bool
}

type RefreshMsg struct{}

func NewModel(ch *chain.Manager, ps *params.Store, eng *midimap.Engine, events chan struct{}) Model {
	var rows []row
	for _, def := range effects.Catalog() {
		rows = append(rows, row{effect: def.Name, label: def.Label})
		for _, p := range def.Parameters {
			step := p.Step
			if step == 0 {
				step = 1
			}
			rows = append(rows, row{
				effect:    def.Name,
				parameter: p.Name,
				label:     p.Label,
				min:       p.Min,
				max:       p.Max,
				step:      step,
			})
		}
	}
	return Model{
		Chain:  ch,
		Params: ps,
		Engine: eng,
		Events: events,
		rows:   rows,
	}
}

// ListenForRefresh bridges engine and chain notifications into the
// bubbletea loop. Callers push to the channel from any goroutine.
func ListenForRefresh(events chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-events
		return RefreshMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForRefresh(m.Events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}

		case " ":
			r := m.rows[m.cursor]
			if m.enabled(r.effect) {
				m.Chain.DisableEffect(r.effect)
			} else {
				m.Chain.EnableEffect(r.effect)
			}

		case "left", "h":
			m.adjust(-1)

		case "right", "l":
			m.adjust(+1)

		case "p":
			if m.Engine.RequestPermission("fxrack") {
				m.status = "MIDI access granted"
			} else {
				m.status = "MIDI access denied"
			}

		case "c":
			m.connectFirst()

		case "r":
			if m.Engine.ReconnectLastActive() {
				m.status = "reconnected"
			} else {
				m.status = "no device to reconnect"
			}

		case "d":
			m.Engine.Disconnect(false, false)
			m.status = "disconnected"

		case "m":
			m.Engine.SetLearning(!m.Engine.Learning())

		case "enter":
			m.Engine.RequestLink(m.rows[m.cursor].targetID())

		case "backspace", "x":
			m.removeMappingAtCursor()
		}

	case RefreshMsg:
		return m, ListenForRefresh(m.Events)
	}

	return m, nil
}

func (m Model) enabled(effect string) bool {
	for _, name := range m.Chain.EnabledEffects() {
		if name == effect {
			return true
		}
	}
	return false
}

func (m *Model) adjust(direction float64) {
	r := m.rows[m.cursor]
	if r.parameter == "" {
		return
	}
	value, ok := m.Params.GetParameter(r.effect, r.parameter)
	if !ok {
		return
	}
	value += direction * r.step
	if value < r.min {
		value = r.min
	}
	if value > r.max {
		value = r.max
	}
	m.Chain.UpdateEffectParameter(r.effect, r.parameter, value)
}

func (m *Model) connectFirst() {
	devices := m.Engine.ScanDevices()
	if len(devices) == 0 {
		m.status = "no MIDI devices found"
		return
	}
	if err := m.Engine.ConnectToDevice(devices[0].ID); err != nil {
		m.status = fmt.Sprintf("connect failed: %v", err)
		return
	}
	m.status = ""
}

func (m *Model) removeMappingAtCursor() {
	target := m.rows[m.cursor].targetID()
	for _, mapping := range m.Engine.Mappings() {
		if mapping.TargetID() != target {
			continue
		}
		key := mapping.Key()
		if m.Engine.RemoveSpecificMapping(key.Type, key.Channel, key.Value) {
			m.status = "mapping removed"
		}
		return
	}
	m.status = "no mapping on " + target
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	learnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("213"))

	state := m.Engine.State()
	mappings := m.Engine.Mappings()
	mapped := make(map[string]bool, len(mappings))
	for _, mp := range mappings {
		mapped[mp.TargetID()] = true
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(accentStyle.Render("fxrack"))
	out.WriteString("\n\n")
	out.WriteString(m.midiLine(state, dimStyle, learnStyle))
	out.WriteString("\n\n")

	for i, r := range m.rows {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		tag := ""
		if mapped[r.targetID()] {
			tag = accentStyle.Render(" [midi]")
		}
		if r.parameter == "" {
			box := "[ ]"
			if m.enabled(r.effect) {
				box = "[x]"
			}
			out.WriteString(fmt.Sprintf("%s%s %s%s\n", marker, box, r.label, tag))
			continue
		}
		value, _ := m.Params.GetParameter(r.effect, r.parameter)
		out.WriteString(fmt.Sprintf("%s    %-14s %s %3.0f%s\n",
			marker, r.label, bar(value, r.min, r.max), value, tag))
	}

	if len(mappings) > 0 {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("mappings:"))
		out.WriteString("\n")
		for _, mp := range mappings {
			out.WriteString(dimStyle.Render(fmt.Sprintf("  %-14s -> %s", mp.Key().String(), mp.TargetID())))
			out.WriteString("\n")
		}
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("jk:nav  space:toggle  hl:adjust  p:permission  c:connect  d:disconnect  m:learn  enter:link  x:unlink  q:quit"))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}

	return out.String()
}

func (m Model) midiLine(state midimap.ConnectionState, dimStyle, learnStyle lipgloss.Style) string {
	var parts []string
	switch {
	case !state.HasPermission:
		parts = append(parts, "midi: no access")
	case state.IsConnected:
		parts = append(parts, "midi: "+state.ConnectedDeviceName)
	default:
		parts = append(parts, fmt.Sprintf("midi: %d device(s)", len(state.AvailableDevices)))
	}
	if state.IsLearning {
		parts = append(parts, learnStyle.Render("LEARN"))
		if act, ok := m.Engine.LastActivity(); ok {
			parts = append(parts, act.Message)
		}
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}

func bar(value, min, max float64) string {
	const width = 10
	span := max - min
	if span <= 0 {
		span = 1
	}
	filled := int((value-min)/span*width + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
