// Package phases holds one screen per wizard step and switches between them
// by name.
package phases

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
)

// GotoPhaseMsg switches directly to the named phase. Unknown names and the
// current phase are ignored.
type GotoPhaseMsg struct {
	Name string
}

// Phase is a named screen.
type Phase struct {
	Name  string
	Title string
	mdl   tea.Model
}

func NewPhase(name, title string, mdl tea.Model) Phase {
	return Phase{
		Name:  name,
		Title: title,
		mdl:   mdl,
	}
}

func (p Phase) Init() tea.Cmd {
	return p.mdl.Init()
}

func (p Phase) Update(msg tea.Msg) (Phase, tea.Cmd) {
	var cmd tea.Cmd
	p.mdl, cmd = p.mdl.Update(msg)

	return p, cmd
}

func (p Phase) View() string {
	return p.mdl.View()
}

// Model shows exactly one phase at a time. Only the shown phase receives
// messages; a phase is re-initialised every time it comes back on screen.
type Model struct {
	phases []Phase
	curr   int
}

// Start returns a container positioned on the named phase, or on the first
// phase if no phase has that name.
func Start(phases []Phase, name string) Model {
	m := Model{phases: phases}
	if idx := m.indexOf(name); idx >= 0 {
		m.curr = idx
	}

	return m
}

func (m Model) current() Phase {
	return m.phases[m.curr]
}

func (m Model) Init() tea.Cmd {
	return m.current().Init()
}

func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := teaMsg.(GotoPhaseMsg); ok {
		idx := m.indexOf(msg.Name)
		if idx < 0 || idx == m.curr {
			return m, nil
		}
		m.curr = idx

		return m, m.current().Init()
	}

	ph, cmd := m.current().Update(teaMsg)
	m.phases[m.curr] = ph

	return m, cmd
}

func (m Model) View() string {
	return m.current().View()
}

// CurrentPhaseName returns the name of the current phase.
func (m Model) CurrentPhaseName() string {
	return m.current().Name
}

// Position returns the 1-based position of the current phase and the
// number of phases.
func (m Model) Position() (int, int) {
	return m.curr + 1, len(m.phases)
}

// Trail renders every phase title in order, the current one highlighted
// and those already passed dimmed.
func (m Model) Trail() string {
	parts := make([]string, len(m.phases))
	for i, p := range m.phases {
		switch {
		case i < m.curr:
			parts[i] = style.Muted.Render(p.Title)
		case i == m.curr:
			parts[i] = style.Title.Render(p.Title)
		default:
			parts[i] = style.Help.Render(p.Title)
		}
	}

	return strings.Join(parts, style.Help.Render(" › "))
}

func (m Model) indexOf(name string) int {
	for i, p := range m.phases {
		if p.Name == name {
			return i
		}
	}

	return -1
}
