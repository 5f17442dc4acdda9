package workflow

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/tui/style"
)

type patientKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
}

func defaultPatientKeyMap() patientKeyMap {
	return patientKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "haut"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "bas"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choisir"),
		),
	}
}

type patientPhase struct {
	s        *Session
	keys     patientKeyMap
	patients []store.Patient
	cursor   int
	loading  bool
	loadErr  error
}

// NewPatientPhase lists active patients. Choosing one selects it and moves
// on to the visit step.
func NewPatientPhase(s *Session) tea.Model {
	return &patientPhase{
		s:    s,
		keys: defaultPatientKeyMap(),
	}
}

func (pp *patientPhase) Init() tea.Cmd {
	pp.loading = true

	return func() tea.Msg {
		patients, err := pp.s.Patients.ListPatients(pp.s.Ctx)
		return patientsLoadedMsg{patients: patients, err: err}
	}
}

func (pp *patientPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case patientsLoadedMsg:
		pp.loading = false
		pp.loadErr = msg.err
		pp.patients = msg.patients
		pp.cursor = 0

		selected := pp.s.Wizard.Record().PatientID()
		for i, p := range pp.patients {
			if p.ID == selected {
				pp.cursor = i
			}
		}

		return pp, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pp.keys.Up):
			if pp.cursor > 0 {
				pp.cursor--
			}
		case key.Matches(msg, pp.keys.Down):
			if pp.cursor < len(pp.patients)-1 {
				pp.cursor++
			}
		case key.Matches(msg, pp.keys.Select):
			return pp, pp.choose()
		}
	}

	return pp, nil
}

func (pp *patientPhase) choose() tea.Cmd {
	if len(pp.patients) == 0 {
		return nil
	}

	ctx, w := pp.s.Ctx, pp.s.Wizard
	if err := w.SelectPatient(ctx, pp.patients[pp.cursor].ID); err != nil {
		return changed(err)
	}

	return changed(w.Next(ctx))
}

func (pp *patientPhase) View() string {
	var sb strings.Builder

	switch {
	case pp.loading:
		sb.WriteString(style.Muted.Render("Chargement des patients..."))
	case pp.loadErr != nil:
		sb.WriteString(style.Error.Render("Impossible de charger les patients: " + pp.loadErr.Error()))
	case len(pp.patients) == 0:
		sb.WriteString(style.Warning.Render("Aucun patient."))
		sb.WriteString("\n")
		sb.WriteString(style.Muted.Render("Ajoutez-en un avec: medannot patients add"))
	default:
		now := pp.s.now()
		for i, p := range pp.patients {
			cursor, name := "  ", style.Label
			if i == pp.cursor {
				cursor, name = style.Bullet.Render("› "), style.Selected
			}

			sb.WriteString(cursor)
			sb.WriteString(name.Render(p.FullName()))
			if p.BirthDate != "" {
				sb.WriteString(style.Muted.Render(fmt.Sprintf("  %d ans", p.Age(now))))
			}
			if len(p.Pathologies) > 0 {
				sb.WriteString(style.Subtitle.Render("  " + strings.Join(p.Pathologies, ", ")))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(renderHelpLine(pp.keys.Up, pp.keys.Down, pp.keys.Select))

	return sb.String()
}
