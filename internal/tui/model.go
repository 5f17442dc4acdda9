// Package tui is the terminal front-end of the annotation wizard.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/tui/components/labeledspinner"
	"github.com/medannot/medannot/internal/tui/components/phases"
	"github.com/medannot/medannot/internal/tui/style"
	"github.com/medannot/medannot/internal/tui/workflow"
	"github.com/medannot/medannot/internal/wizard"
)

// Config wires the TUI to its session.
type Config struct {
	// Cancel aborts in-flight operations when the user quits.
	Cancel  context.CancelFunc
	Session *workflow.Session
	Gate    *wizard.Gate
}

// Model is the root model. It owns the phases container, the restore dialog
// and the busy/error lines, and keeps the visible phase in step with the
// wizard.
type Model struct {
	config  Config
	keys    KeyMap
	phases  phases.Model
	spinner labeledspinner.Model
	dialog  *restoreDialog

	busy   string
	err    error
	notice string
}

// New builds the root model. The restore dialog is shown when the gate
// says so.
func New(config Config) *Model {
	s := config.Session
	w := s.Wizard

	var list []phases.Phase
	for _, step := range draft.Steps() {
		list = append(list, phases.NewPhase(string(step), step.Title(), newPhase(step, s)))
	}

	m := &Model{
		config: config,
		keys:   DefaultKeyMap(),
		phases: phases.Start(list, string(w.Step())),
		spinner: labeledspinner.New(
			spinner.Dot,
			"",
			"Veuillez patienter",
			"ctrl+c pour quitter",
		),
	}

	if config.Gate != nil && config.Gate.ShouldPrompt(s.Ctx) {
		if rec, ok := config.Gate.Preview(s.Ctx); ok {
			m.dialog = newRestoreDialog(rec)
		}
	}

	return m
}

func newPhase(step draft.Step, s *workflow.Session) tea.Model {
	switch step {
	case draft.StepVisit:
		return workflow.NewVisitPhase(s)
	case draft.StepRecord:
		return workflow.NewRecording(s)
	case draft.StepTranscription:
		return workflow.NewTranscriptionPhase(s)
	case draft.StepResult:
		return workflow.NewResultPhase(s)
	default:
		return workflow.NewPatientPhase(s)
	}
}

// Init returns the initial command.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), m.phases.Init())
}

// Update handles all messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, m.quit()
		}
		if m.dialog != nil {
			return m, m.resolveDialog(msg)
		}
		if m.busy != "" {
			return m, nil
		}
		m.notice = ""

	case workflow.BusyMsg:
		m.busy = msg.Label
		m.spinner = m.spinner.Start(msg.Label)
		m.err = nil
		m.notice = ""

		return m, nil

	case workflow.ChangedMsg:
		m.busy = ""
		m.err = msg.Err

		return m, m.follow(msg)

	case workflow.SavedMsg:
		m.busy = ""
		m.err = nil
		m.notice = fmt.Sprintf("Annotation enregistrée (%s %s).", msg.Annotation.VisitDate, msg.Annotation.VisitTime)

		return m, m.follow(workflow.ChangedMsg{})

	case spinner.TickMsg:
		var spinCmd tea.Cmd
		m.spinner, spinCmd = m.spinner.Update(msg)

		return m, tea.Batch(spinCmd, m.updatePhases(msg))
	}

	return m, m.updatePhases(teaMsg)
}

// follow moves the phases container to the wizard's step, or hands msg to
// the current phase when the step did not change.
func (m *Model) follow(msg workflow.ChangedMsg) tea.Cmd {
	step := string(m.config.Session.Wizard.Step())
	if step != m.phases.CurrentPhaseName() {
		return m.updatePhases(phases.GotoPhaseMsg{Name: step})
	}

	return m.updatePhases(msg)
}

func (m *Model) updatePhases(msg tea.Msg) tea.Cmd {
	updated, cmd := m.phases.Update(msg)
	m.phases = updated.(phases.Model) //nolint:forcetypeassert // phases.Model always returns phases.Model

	return cmd
}

func (m *Model) resolveDialog(msg tea.KeyMsg) tea.Cmd {
	s, gate := m.config.Session, m.config.Gate

	var err error
	switch {
	case key.Matches(msg, m.dialog.keys.Restore):
		err = gate.Restore(s.Ctx, s.Wizard)
	case key.Matches(msg, m.dialog.keys.Discard):
		err = gate.Discard(s.Ctx, s.Wizard)
	case key.Matches(msg, m.dialog.keys.Dismiss):
		gate.Dismiss(s.Ctx)
	default:
		return nil
	}

	m.dialog = nil
	m.err = err

	return m.follow(workflow.ChangedMsg{Err: err})
}

func (m *Model) quit() tea.Cmd {
	m.config.Session.Wizard.Close()
	if m.config.Cancel != nil {
		m.config.Cancel()
	}

	return tea.Quit
}

// CurrentStep returns the step whose phase is on screen.
func (m *Model) CurrentStep() draft.Step {
	return draft.Step(m.phases.CurrentPhaseName())
}

// View renders the current UI.
func (m *Model) View() string {
	var sb strings.Builder

	if m.dialog != nil {
		sb.WriteString(m.dialog.View())
		sb.WriteString("\n")

		return sb.String()
	}

	pos, total := m.phases.Position()
	sb.WriteString(style.Header.Render("MedAnnot"))
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("  Étape %d/%d · %s", pos, total, m.CurrentStep().Title())))
	sb.WriteString("\n")
	sb.WriteString(m.phases.Trail())
	sb.WriteString("\n\n")

	if m.busy != "" {
		sb.WriteString(m.spinner.View())
		sb.WriteString("\n")

		return sb.String()
	}

	sb.WriteString(m.phases.View())
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(style.Error.Render("✗ " + m.err.Error()))
		sb.WriteString("\n")
	}
	if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(style.Success.Render("✓ " + m.notice))
		sb.WriteString("\n")
	}

	return sb.String()
}
