package tui_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/kv"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/tui"
	"github.com/medannot/medannot/internal/tui/workflow"
	"github.com/medannot/medannot/internal/wizard"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

const (
	waitFor  = 3 * time.Second
	interval = 50 * time.Millisecond
)

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(context.Context, audio.Clip) (string, error) {
	return s.text, s.err
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, annotate.Request) (string, error) {
	return "Soins effectués: pansement refait.", nil
}

type env struct {
	db          *store.DB
	drafts      *draft.Store
	transcriber *stubTranscriber
	session     *workflow.Session
	patient     store.Patient
	now         time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	patient, err := db.CreatePatient(ctx, store.Patient{FirstName: "Jeanne", LastName: "Favre", BirthDate: "1941-06-12"})
	require.NoError(t, err)

	e := &env{
		db:          db,
		drafts:      draft.NewStore(kv.NewMemory(), kv.NewMemory()),
		transcriber: &stubTranscriber{text: "Patiente stable, pansement refait"},
		patient:     patient,
		now:         time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
	}

	return e
}

// start builds the session and runs the root model in a test program.
func (e *env) start(t *testing.T) *teatest.TestModel {
	t.Helper()

	now := func() time.Time { return e.now }
	e.session = &workflow.Session{
		Ctx: context.Background(),
		Wizard: wizard.New(wizard.Deps{
			Drafts:      e.drafts,
			Transcriber: e.transcriber,
			Generator:   stubGenerator{},
			Backend:     e.db,
			Examples:    3,
			Now:         now,
		}),
		Patients: e.db,
		Importer: audio.NewImporter(t.TempDir(), 0),
		Now:      now,
	}

	model := tui.New(tui.Config{
		Session: e.session,
		Gate:    wizard.NewGate(e.drafts),
	})

	return teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 30))
}

func (e *env) saveDraft(t *testing.T, step draft.Step, transcription string) {
	t.Helper()

	rec := draft.New(e.now)
	id := e.patient.ID
	rec.SelectedPatientID = &id
	rec.Transcription = transcription
	rec.Step = step
	rec.UpdatedAt = e.now
	e.drafts.Save(context.Background(), rec)
}

func waitString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	}, teatest.WithCheckInterval(interval), teatest.WithDuration(waitFor))
}

func (e *env) waitStep(t *testing.T, step draft.Step) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.session.Wizard.Step() == step
	}, waitFor, interval, "wizard should reach %s", step)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func wavBytes(t *testing.T, seconds int) []byte {
	t.Helper()

	const sampleRate = 8000
	dataSize := uint32(seconds * sampleRate * 2)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, 36+dataSize))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), uint32(sampleRate), uint32(sampleRate * 2), uint16(2), uint16(16)} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}

// importAudio walks from the patient list to the record step and imports path.
func (e *env) importAudio(t *testing.T, tm *teatest.TestModel, path string) {
	t.Helper()

	waitString(t, tm, "Jeanne Favre")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	waitString(t, tm, "Étape 2/5 · Visite")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	waitString(t, tm, "Étape 3/5 · Enregistrement")

	tm.Send(keyRunes("i"))
	waitString(t, tm, "Formats acceptés")
	tm.Type(path)
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_NoDraftStartsOnPatientStep(t *testing.T) {
	e := newEnv(t)
	tm := e.start(t)

	waitString(t, tm, "Étape 1/5 · Patient")

	require.NoError(t, tm.Quit())
	final, ok := tm.FinalModel(t, teatest.WithFinalTimeout(waitFor)).(*tui.Model)
	require.True(t, ok)
	assert.Equal(t, draft.StepPatient, final.CurrentStep())
}

func TestModel_FullFlow(t *testing.T) {
	e := newEnv(t)
	tm := e.start(t)

	e.importAudio(t, tm, writeFile(t, "visite.wav", wavBytes(t, 2)))

	waitString(t, tm, "Étape 4/5 · Transcription")
	e.waitStep(t, draft.StepTranscription)
	assert.Equal(t, 2, e.session.Wizard.Record().AudioDuration)

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlG})
	waitString(t, tm, "Étape 5/5 · Annotation")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlS})
	waitString(t, tm, "Annotation enregistrée (2024-03-01 08:30)")
	e.waitStep(t, draft.StepPatient)

	saved, err := e.db.ListAnnotations(context.Background(), e.patient.ID, 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Patiente stable, pansement refait", saved[0].Transcription)

	_, ok := e.drafts.Load(context.Background())
	assert.False(t, ok)

	require.NoError(t, tm.Quit())
}

func TestModel_TranscriptionFailureStaysOnRecord(t *testing.T) {
	e := newEnv(t)
	e.transcriber.err = errors.New("whisper: 503")
	tm := e.start(t)

	e.importAudio(t, tm, writeFile(t, "visite.wav", wavBytes(t, 1)))

	waitString(t, tm, "✗ transcription failed: whisper: 503")
	assert.Equal(t, draft.StepRecord, e.session.Wizard.Step())

	rec, ok := e.drafts.Load(context.Background())
	require.True(t, ok)
	assert.Empty(t, rec.Transcription)

	require.NoError(t, tm.Quit())
}

func TestModel_RejectedImportLeavesDraftUnchanged(t *testing.T) {
	e := newEnv(t)
	tm := e.start(t)

	e.importAudio(t, tm, writeFile(t, "ordonnance.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")))

	waitString(t, tm, "✗ ")
	assert.Equal(t, draft.StepRecord, e.session.Wizard.Step())

	rec, ok := e.drafts.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, draft.StepRecord, rec.Step)
	assert.Zero(t, rec.AudioDuration)

	require.NoError(t, tm.Quit())
}

func TestModel_RestoreDraft(t *testing.T) {
	e := newEnv(t)
	e.saveDraft(t, draft.StepTranscription, "Patiente stable, pansement refait")
	tm := e.start(t)

	waitString(t, tm, "Une annotation non terminée a été trouvée.")

	tm.Send(keyRunes("r"))
	waitString(t, tm, "Étape 4/5 · Transcription")

	assert.Equal(t, draft.StepTranscription, e.session.Wizard.Step())
	assert.Equal(t, "Patiente stable, pansement refait", e.session.Wizard.Record().Transcription)
	assert.True(t, e.drafts.SessionResolved(context.Background()))

	require.NoError(t, tm.Quit())
}

func TestModel_DiscardDraft(t *testing.T) {
	e := newEnv(t)
	e.saveDraft(t, draft.StepRecord, "Patiente stable")
	tm := e.start(t)

	waitString(t, tm, "Annotation en cours")
	tm.Send(keyRunes("d"))
	waitString(t, tm, "Étape 1/5 · Patient")

	_, ok := e.drafts.Load(context.Background())
	assert.False(t, ok)
	assert.Equal(t, draft.StepPatient, e.session.Wizard.Step())

	require.NoError(t, tm.Quit())
}

func TestModel_DismissKeepsDraft(t *testing.T) {
	e := newEnv(t)
	e.saveDraft(t, draft.StepTranscription, "Patiente stable")
	tm := e.start(t)

	waitString(t, tm, "Annotation en cours")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})
	waitString(t, tm, "Étape 1/5 · Patient")

	ctx := context.Background()
	rec, ok := e.drafts.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "Patiente stable", rec.Transcription)
	assert.True(t, e.drafts.SessionResolved(ctx))
	assert.False(t, wizard.NewGate(e.drafts).ShouldPrompt(ctx), "no second prompt in the same session")

	require.NoError(t, tm.Quit())
}

func TestModel_NoPromptForDraftWithoutText(t *testing.T) {
	e := newEnv(t)
	e.saveDraft(t, draft.StepVisit, "")
	tm := e.start(t)

	waitString(t, tm, "Étape 1/5 · Patient")

	require.NoError(t, tm.Quit())
}

func TestModel_QuitClosesWizard(t *testing.T) {
	e := newEnv(t)
	tm := e.start(t)

	waitString(t, tm, "Jeanne Favre")
	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(waitFor))

	err := e.session.Wizard.SelectPatient(context.Background(), e.patient.ID)
	require.ErrorIs(t, err, wizard.ErrClosed)
}
