package workflow

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
)

var generateKey = key.NewBinding(
	key.WithKeys("ctrl+g"),
	key.WithHelp("ctrl+g", "générer l'annotation"),
)

// transcriptionPhase lets the nurse correct the transcript before
// generation. Every edit is written through to the draft.
type transcriptionPhase struct {
	s      *Session
	editor textarea.Model
	width  int
	height int
}

// NewTranscriptionPhase creates the transcript editor.
func NewTranscriptionPhase(s *Session) tea.Model {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = false
	ta.Placeholder = "Transcription de la visite"

	tp := &transcriptionPhase{s: s, editor: ta}
	tp.resize(80, 24)

	return tp
}

func (tp *transcriptionPhase) Init() tea.Cmd {
	tp.editor.SetValue(tp.s.Wizard.Record().Transcription)

	return tea.Batch(tp.editor.Focus(), tea.WindowSize())
}

func (tp *transcriptionPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		tp.resize(msg.Width, msg.Height)

		return tp, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, generateKey):
			return tp, tp.generate()
		case key.Matches(msg, backKey):
			return tp, changed(tp.s.Wizard.Back(tp.s.Ctx))
		}
	}

	before := tp.editor.Value()

	var cmd tea.Cmd
	tp.editor, cmd = tp.editor.Update(teaMsg)

	if after := tp.editor.Value(); after != before {
		if err := tp.s.Wizard.SetTranscription(tp.s.Ctx, after); err != nil {
			return tp, tea.Batch(cmd, changed(err))
		}
	}

	return tp, cmd
}

func (tp *transcriptionPhase) generate() tea.Cmd {
	ctx, w := tp.s.Ctx, tp.s.Wizard
	if err := w.SetTranscription(ctx, tp.editor.Value()); err != nil {
		return changed(err)
	}

	return run("Génération de l'annotation...", func() error {
		return w.Generate(ctx)
	})
}

func (tp *transcriptionPhase) resize(width, height int) {
	tp.width = width
	tp.height = height
	tp.editor.SetWidth(max(width-4, 20))
	tp.editor.SetHeight(max(height-12, 5))
}

func (tp *transcriptionPhase) View() string {
	var sb strings.Builder

	sb.WriteString(style.Subtitle.Render("Relisez et corrigez la transcription."))
	sb.WriteString("\n\n")
	sb.WriteString(tp.editor.View())
	sb.WriteString("\n\n")
	sb.WriteString(renderHelpLine(generateKey, backKey))

	return sb.String()
}
