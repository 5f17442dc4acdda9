package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/kv"
	"github.com/medannot/medannot/internal/store"
)

var errNetwork = errors.New("connection reset by peer")

// mockTranscriber implements Transcriber. When release is set, calls block
// until it is closed.
type mockTranscriber struct {
	mu      sync.Mutex
	result  string
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ audio.Clip) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}

	return m.result, m.err
}

// mockGenerator implements Generator and records the last request.
type mockGenerator struct {
	results []string
	err     error
	calls   int
	lastReq annotate.Request
}

func (m *mockGenerator) Generate(_ context.Context, req annotate.Request) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.results[min(m.calls, len(m.results))-1], nil
}

// mockBackend implements Backend in memory.
type mockBackend struct {
	patients    map[string]store.Patient
	template    string
	examples    []string
	saveErr     error
	saved       []store.Annotation
	examplesFor int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		patients: map[string]store.Patient{
			"p-1": {
				ID:          "p-1",
				FirstName:   "Jeanne",
				LastName:    "Favre",
				BirthDate:   "1941-06-12",
				Pathologies: []string{"diabète type 2"},
				Notes:       "Vit seule",
			},
		},
		template: "Soins:\nObservations:",
		examples: []string{"Pansement refait, évolution favorable."},
	}
}

func (m *mockBackend) GetPatient(_ context.Context, id string) (store.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return store.Patient{}, store.ErrNotFound
	}
	return p, nil
}

func (m *mockBackend) StructureTemplate(_ context.Context) (string, error) {
	return m.template, nil
}

func (m *mockBackend) RecentAnnotationTexts(_ context.Context, _ string, n int) ([]string, error) {
	m.examplesFor = n
	return m.examples, nil
}

func (m *mockBackend) SaveAnnotation(_ context.Context, a store.Annotation) (store.Annotation, error) {
	if m.saveErr != nil {
		return store.Annotation{}, m.saveErr
	}
	a.ID = "a-1"
	m.saved = append(m.saved, a)
	return a, nil
}

// harness bundles a wizard with inspectable collaborators. profile is the
// durable store; session is replaced to simulate a new session.
type harness struct {
	profile     *kv.Memory
	session     *kv.Memory
	drafts      *draft.Store
	transcriber *mockTranscriber
	generator   *mockGenerator
	backend     *mockBackend
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		profile:     kv.NewMemory(),
		session:     kv.NewMemory(),
		transcriber: &mockTranscriber{result: "Patiente stable, pansement refait"},
		generator:   &mockGenerator{results: []string{"Soins: pansement refait.", "Soins: pansement refait, plaie propre."}},
		backend:     newMockBackend(),
		now:         time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
	}
	h.drafts = draft.NewStore(h.profile, h.session)

	return h
}

// newSession simulates closing the terminal (or browser tab) and coming
// back: the durable store survives, the session store does not.
func (h *harness) newSession() {
	h.session = kv.NewMemory()
	h.drafts = draft.NewStore(h.profile, h.session)
}

func (h *harness) wizard() *Wizard {
	return New(Deps{
		Drafts:      h.drafts,
		Transcriber: h.transcriber,
		Generator:   h.generator,
		Backend:     h.backend,
		Examples:    3,
		Now:         func() time.Time { return h.now },
	})
}

func (h *harness) gate() *Gate {
	return NewGate(h.drafts)
}

func clip() audio.Clip {
	return audio.Clip{Path: "/tmp/dictation.mp3", Filename: "dictation.mp3", Duration: 42 * time.Second}
}
