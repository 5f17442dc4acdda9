package workflow

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitPhase_Submit(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepVisit)

	phase := NewVisitPhase(h.session).(*visitPhase)
	phase.Init()

	assert.Equal(t, "2024-03-01", phase.inputs[fieldDate].Value())
	assert.Equal(t, "08:30", phase.inputs[fieldTime].Value())
	assert.Contains(t, phase.View(), "Durée (min)")

	phase.Update(tea.KeyMsg{Type: tea.KeyTab})
	phase.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, fieldDuration, phase.focus)
	phase.Update(keyRunes("45"))

	_, cmd := phase.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ChangedMsg{}, exec(t, cmd))

	rec := h.session.Wizard.Record()
	assert.Equal(t, draft.StepRecord, rec.Step)
	require.NotNil(t, rec.VisitDuration)
	assert.Equal(t, 45, *rec.VisitDuration)
}

func TestVisitPhase_EditsReachTheDraft(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepVisit)
	ctx := context.Background()

	phase := NewVisitPhase(h.session).(*visitPhase)
	phase.Init()

	phase.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, fieldTime, phase.focus)
	phase.Update(tea.KeyMsg{Type: tea.KeyBackspace})

	stored, ok := h.drafts.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "08:30", stored.VisitTime, "a half-typed time is not stored")

	phase.Update(keyRunes("5"))
	stored, _ = h.drafts.Load(ctx)
	assert.Equal(t, "08:35", stored.VisitTime)

	phase.Update(tea.KeyMsg{Type: tea.KeyTab})
	phase.Update(keyRunes("4"))
	phase.Update(keyRunes("5"))

	stored, _ = h.drafts.Load(ctx)
	require.NotNil(t, stored.VisitDuration)
	assert.Equal(t, 45, *stored.VisitDuration)
	assert.Equal(t, draft.StepVisit, stored.Step, "editing does not leave the visit step")

	phase.Update(keyRunes("x"))
	stored, _ = h.drafts.Load(ctx)
	assert.Equal(t, 45, *stored.VisitDuration)
}

func TestVisitPhase_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		clock    string
		duration string
	}{
		{name: "bad date", date: "01.03.2024", clock: "08:30"},
		{name: "bad time", date: "2024-03-01", clock: "8h30"},
		{name: "duration not a number", date: "2024-03-01", clock: "08:30", duration: "une heure"},
		{name: "zero duration", date: "2024-03-01", clock: "08:30", duration: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.advance(t, draft.StepVisit)

			phase := NewVisitPhase(h.session).(*visitPhase)
			phase.Init()
			phase.inputs[fieldDate].SetValue(tt.date)
			phase.inputs[fieldTime].SetValue(tt.clock)
			phase.inputs[fieldDuration].SetValue(tt.duration)

			_, cmd := phase.Update(tea.KeyMsg{Type: tea.KeyEnter})
			msg, ok := exec(t, cmd).(ChangedMsg)
			require.True(t, ok)
			require.ErrorIs(t, msg.Err, wizard.ErrInvalidVisit)

			assert.Equal(t, draft.StepVisit, h.session.Wizard.Step())
		})
	}
}

func TestVisitPhase_Back(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepVisit)

	phase := NewVisitPhase(h.session)
	phase.Init()

	_, cmd := phase.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ChangedMsg{}, exec(t, cmd))

	rec := h.session.Wizard.Record()
	assert.Equal(t, draft.StepPatient, rec.Step)
	assert.Equal(t, h.patient.ID, rec.PatientID(), "going back keeps the selection")
}
