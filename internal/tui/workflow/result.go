package workflow

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
)

type resultKeyMap struct {
	Regenerate key.Binding
	Save       key.Binding
}

func defaultResultKeyMap() resultKeyMap {
	return resultKeyMap{
		Regenerate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "régénérer"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "enregistrer"),
		),
	}
}

// resultPhase shows the generated annotation and saves it.
type resultPhase struct {
	s        *Session
	keys     resultKeyMap
	viewport viewport.Model
	shown    string
	width    int
	height   int
}

// NewResultPhase creates the annotation viewer.
func NewResultPhase(s *Session) tea.Model {
	rp := &resultPhase{
		s:    s,
		keys: defaultResultKeyMap(),
	}
	rp.setupViewport(80, 24)

	return rp
}

func (rp *resultPhase) Init() tea.Cmd {
	rp.refresh()

	return tea.WindowSize()
}

func (rp *resultPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		rp.setupViewport(msg.Width, msg.Height)

		return rp, nil

	case ChangedMsg:
		// Regeneration finished while this phase stayed current.
		rp.refresh()

		return rp, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, rp.keys.Regenerate):
			return rp, rp.regenerate()
		case key.Matches(msg, rp.keys.Save):
			return rp, rp.save()
		case key.Matches(msg, backKey):
			return rp, changed(rp.s.Wizard.Back(rp.s.Ctx))
		}
	}

	var cmd tea.Cmd
	rp.viewport, cmd = rp.viewport.Update(teaMsg)

	return rp, cmd
}

func (rp *resultPhase) regenerate() tea.Cmd {
	ctx, w := rp.s.Ctx, rp.s.Wizard

	return run("Nouvelle génération...", func() error {
		return w.Regenerate(ctx)
	})
}

func (rp *resultPhase) save() tea.Cmd {
	ctx, w := rp.s.Ctx, rp.s.Wizard

	return tea.Sequence(
		func() tea.Msg { return BusyMsg{Label: "Enregistrement de l'annotation..."} },
		func() tea.Msg {
			saved, err := w.Save(ctx)
			if err != nil {
				return ChangedMsg{Err: err}
			}
			return SavedMsg{Annotation: saved}
		},
	)
}

func (rp *resultPhase) refresh() {
	rp.shown = rp.s.Wizard.Record().Annotation
	rp.viewport.SetContent(wrapText(rp.shown, rp.viewport.Width))
	rp.viewport.GotoTop()
}

func (rp *resultPhase) setupViewport(width, height int) {
	rp.width = width
	rp.height = height

	rp.viewport = viewport.New(max(width-4, 10), max(height-10, 5))
	rp.viewport.SetContent(wrapText(rp.shown, rp.viewport.Width))
}

func (rp *resultPhase) View() string {
	var sb strings.Builder

	sb.WriteString(style.Viewport.Render(rp.viewport.View()))
	sb.WriteString("\n\n")
	sb.WriteString(renderHelpLine(rp.keys.Regenerate, rp.keys.Save, backKey))

	return sb.String()
}
