package workflow

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/medannot/medannot/internal/draft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptionPhase_EditsAreWrittenThrough(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepTranscription)

	phase := NewTranscriptionPhase(h.session).(*transcriptionPhase)
	phase.Init()

	assert.Equal(t, "Patiente stable, pansement refait", phase.editor.Value())

	phase.Update(keyRunes(", TA 13/8"))

	stored, ok := h.drafts.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "Patiente stable, pansement refait, TA 13/8", stored.Transcription)
	assert.Equal(t, draft.StepTranscription, stored.Step)
}

func TestTranscriptionPhase_Back(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepTranscription)

	phase := NewTranscriptionPhase(h.session)
	phase.Init()

	_, cmd := phase.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ChangedMsg{}, exec(t, cmd))
	assert.Equal(t, draft.StepRecord, h.session.Wizard.Step())
	assert.Equal(t, "Patiente stable, pansement refait", h.session.Wizard.Record().Transcription,
		"going back keeps the transcript")
}

func TestTranscriptionPhase_Generate(t *testing.T) {
	h := newHarness(t)
	h.advance(t, draft.StepTranscription)

	tm := teatest.NewTestModel(t, NewTranscriptionPhase(h.session), teatest.WithInitialTermSize(80, 24))
	checker := defaultChecker()

	checker.checkString(t, tm, "Relisez et corrigez")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlG})

	require.Eventually(t, func() bool {
		return h.session.Wizard.Step() == draft.StepResult
	}, checker.timeout, checker.intervl, "generation should complete")
	assert.Equal(t, "Soins effectués: pansement refait.", h.session.Wizard.Record().Annotation)

	require.NoError(t, tm.Quit())
}
