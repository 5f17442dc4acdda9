package workflow

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
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
	"github.com/medannot/medannot/internal/wizard"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// outputChecker provides helpers for testing teatest output.
type outputChecker struct {
	intervl, timeout time.Duration
}

func defaultChecker() outputChecker {
	return outputChecker{
		intervl: 50 * time.Millisecond,
		timeout: 3 * time.Second,
	}
}

func (o outputChecker) check(t *testing.T, tm *teatest.TestModel, checkFunc func(buf []byte) bool) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), checkFunc,
		teatest.WithCheckInterval(o.intervl),
		teatest.WithDuration(o.timeout))
}

func (o outputChecker) checkString(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	o.check(t, tm, func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	})
}

// mockTranscriber implements wizard.Transcriber for testing.
type mockTranscriber struct {
	result string
	err    error
	calls  atomic.Int32
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ audio.Clip) (string, error) {
	m.calls.Add(1)
	return m.result, m.err
}

// mockGenerator implements wizard.Generator for testing.
type mockGenerator struct {
	result string
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, _ annotate.Request) (string, error) {
	return m.result, m.err
}

// mockKnob implements uictl.Knob for testing.
type mockKnob struct {
	mu    sync.Mutex
	state bool
}

func (m *mockKnob) Read() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockKnob) On() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = true
}

func (m *mockKnob) Off() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = false
}

func (m *mockKnob) Toggle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = !m.state
}

// mockCappedDial implements uictl.CappedDial[int64] for testing.
type mockCappedDial struct {
	current, max int64
}

func (m *mockCappedDial) Read() int64         { return m.current }
func (m *mockCappedDial) Cap() (int64, int64) { return m.current, m.max }

// mockLevels implements uictl.Levels[int16] for testing.
type mockLevels struct {
	samples []int16
}

func (m *mockLevels) Read() []int16 { return m.samples }

type harness struct {
	session     *Session
	db          *store.DB
	drafts      *draft.Store
	transcriber *mockTranscriber
	generator   *mockGenerator
	patient     store.Patient
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	patient, err := db.CreatePatient(ctx, store.Patient{
		FirstName:   "Jeanne",
		LastName:    "Favre",
		BirthDate:   "1941-06-12",
		Pathologies: []string{"diabète type 2"},
	})
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }

	h := &harness{
		db:          db,
		drafts:      draft.NewStore(kv.NewMemory(), kv.NewMemory()),
		transcriber: &mockTranscriber{result: "Patiente stable, pansement refait"},
		generator:   &mockGenerator{result: "Soins effectués: pansement refait."},
		patient:     patient,
	}

	h.session = &Session{
		Ctx: ctx,
		Wizard: wizard.New(wizard.Deps{
			Drafts:      h.drafts,
			Transcriber: h.transcriber,
			Generator:   h.generator,
			Backend:     db,
			Examples:    3,
			Now:         now,
		}),
		Patients: db,
		Importer: audio.NewImporter(t.TempDir(), 0),
		Now:      now,
	}

	return h
}

// advance drives the wizard to step without going through the phases.
func (h *harness) advance(t *testing.T, step draft.Step) {
	t.Helper()

	ctx, w := context.Background(), h.session.Wizard
	rec := w.Record()
	id := h.patient.ID
	rec.SelectedPatientID = &id
	rec.Step = step
	if step.Index() >= draft.StepTranscription.Index() {
		rec.Transcription = "Patiente stable, pansement refait"
	}
	if step == draft.StepResult {
		rec.Annotation = "Soins effectués: pansement refait."
	}
	require.NoError(t, w.Load(rec))
	h.drafts.Save(ctx, w.Record())
}

// exec runs a command that is expected to produce a message right away.
func exec(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)

	return cmd()
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func writeWav(t *testing.T, seconds int) string {
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

	path := filepath.Join(t.TempDir(), "visite.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}
