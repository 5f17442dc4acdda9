package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
	"github.com/medannot/medannot/internal/wizard"
)

const (
	fieldDate = iota
	fieldTime
	fieldDuration
	fieldCount
)

var fieldLabels = [fieldCount]string{"Date", "Heure", "Durée (min)"}

type visitKeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
}

func defaultVisitKeyMap() visitKeyMap {
	return visitKeyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "champ suivant"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "champ précédent"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "continuer"),
		),
	}
}

type visitPhase struct {
	s      *Session
	keys   visitKeyMap
	inputs [fieldCount]textinput.Model
	focus  int
}

// NewVisitPhase edits the visit date, time and optional duration. Every edit
// that leaves the form valid is written to the draft; submitting validates
// and moves on.
func NewVisitPhase(s *Session) tea.Model {
	vp := &visitPhase{
		s:    s,
		keys: defaultVisitKeyMap(),
	}

	placeholders := [fieldCount]string{"AAAA-MM-JJ", "HH:MM", "optionnel"}
	limits := [fieldCount]int{10, 5, 4}
	for i := range vp.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 12
		vp.inputs[i] = ti
	}

	return vp
}

func (vp *visitPhase) Init() tea.Cmd {
	rec := vp.s.Wizard.Record()

	vp.inputs[fieldDate].SetValue(rec.VisitDate)
	vp.inputs[fieldTime].SetValue(rec.VisitTime)
	if rec.VisitDuration != nil {
		vp.inputs[fieldDuration].SetValue(strconv.Itoa(*rec.VisitDuration))
	} else {
		vp.inputs[fieldDuration].SetValue("")
	}

	return vp.focusField(fieldDate)
}

func (vp *visitPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := teaMsg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, backKey):
			return vp, changed(vp.s.Wizard.Back(vp.s.Ctx))
		case key.Matches(msg, vp.keys.NextField):
			return vp, vp.focusField((vp.focus + 1) % fieldCount)
		case key.Matches(msg, vp.keys.PrevField):
			return vp, vp.focusField((vp.focus + fieldCount - 1) % fieldCount)
		case key.Matches(msg, vp.keys.Submit):
			return vp, vp.submit()
		}
	}

	before := vp.inputs[vp.focus].Value()

	var cmd tea.Cmd
	vp.inputs[vp.focus], cmd = vp.inputs[vp.focus].Update(teaMsg)

	if vp.inputs[vp.focus].Value() != before {
		vp.store()
	}

	return vp, cmd
}

// store writes the form to the draft when it is valid. Incomplete input is
// kept on screen only and reported on submit.
func (vp *visitPhase) store() {
	date, clock, duration, err := vp.values()
	if err != nil {
		return
	}

	_ = vp.s.Wizard.SetVisit(vp.s.Ctx, date, clock, duration)
}

func (vp *visitPhase) values() (string, string, *int, error) {
	duration, err := parseDuration(vp.inputs[fieldDuration].Value())
	if err != nil {
		return "", "", nil, err
	}

	date := strings.TrimSpace(vp.inputs[fieldDate].Value())
	clock := strings.TrimSpace(vp.inputs[fieldTime].Value())

	return date, clock, duration, nil
}

func (vp *visitPhase) focusField(i int) tea.Cmd {
	for j := range vp.inputs {
		vp.inputs[j].Blur()
	}
	vp.focus = i

	return vp.inputs[i].Focus()
}

func (vp *visitPhase) submit() tea.Cmd {
	date, clock, duration, err := vp.values()
	if err != nil {
		return changed(err)
	}

	ctx, w := vp.s.Ctx, vp.s.Wizard
	if err := w.SetVisit(ctx, date, clock, duration); err != nil {
		return changed(err)
	}

	return changed(w.Next(ctx))
}

func parseDuration(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: duration must be a number of minutes", wizard.ErrInvalidVisit)
	}

	return &minutes, nil
}

func (vp *visitPhase) View() string {
	var sb strings.Builder

	for i := range vp.inputs {
		sb.WriteString(style.Label.Render(fmt.Sprintf("%-12s", fieldLabels[i])))
		sb.WriteString(vp.inputs[i].View())
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderHelpLine(vp.keys.NextField, vp.keys.Submit, backKey))

	return sb.String()
}
