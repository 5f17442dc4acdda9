// Package wizard drives the five-step annotation flow: choose a patient,
// describe the visit, capture audio, review the transcript, then review and
// save the generated annotation. Every tracked change is written through to
// the draft store.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/store"
)

var (
	ErrNoPatientSelected    = errors.New("select a patient first")
	ErrEmptyTranscription   = errors.New("transcription is empty")
	ErrEmptyAnnotation      = errors.New("annotation is empty")
	ErrInvalidVisit         = errors.New("visit date must be YYYY-MM-DD and time HH:MM")
	ErrTransitionNotAllowed = errors.New("transition not allowed from this step")
	ErrBusy                 = errors.New("an operation is already in progress")
	ErrClosed               = errors.New("wizard closed")
)

// Transcriber turns a clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

// Generator writes an annotation from a transcript and its context.
type Generator interface {
	Generate(ctx context.Context, req annotate.Request) (string, error)
}

// Backend supplies patient context and persists finished annotations.
type Backend interface {
	GetPatient(ctx context.Context, id string) (store.Patient, error)
	StructureTemplate(ctx context.Context) (string, error)
	RecentAnnotationTexts(ctx context.Context, patientID string, n int) ([]string, error)
	SaveAnnotation(ctx context.Context, a store.Annotation) (store.Annotation, error)
}

// Deps are the collaborators of a Wizard.
type Deps struct {
	Drafts      *draft.Store
	Transcriber Transcriber
	Generator   Generator
	Backend     Backend
	// Examples is how many earlier annotations are sent as style examples.
	Examples int
	Now      func() time.Time
}

// Wizard is the state of one annotation in progress. It is safe for
// concurrent use: long operations release the lock while the network call
// runs and hold the busy flag instead.
type Wizard struct {
	deps Deps

	mu      sync.Mutex
	rec     draft.Record
	busy    bool
	closed  bool
	lastErr error
}

// New returns a wizard on the patient step with an empty record. Nothing is
// persisted until the first change.
func New(deps Deps) *Wizard {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Wizard{deps: deps, rec: draft.New(deps.Now())}
}

// Step is the current step.
func (w *Wizard) Step() draft.Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rec.Step
}

// Record returns a copy of the working record.
func (w *Wizard) Record() draft.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rec
}

// Busy reports whether an async operation is in flight.
func (w *Wizard) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.busy
}

// Err returns the error of the last operation, or nil.
func (w *Wizard) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lastErr
}

// Close stops the wizard. Results of calls still in flight are discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
}

// Load replaces the working record, positioning the wizard on rec.Step.
// It does not write to the draft store.
func (w *Wizard) Load(rec draft.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}
	if !rec.Step.Valid() {
		return fmt.Errorf("%w: unknown step %q", ErrTransitionNotAllowed, rec.Step)
	}

	w.rec = rec
	w.lastErr = nil

	return nil
}

// Reset starts over on the patient step with an empty record. It does not
// write to the draft store.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}

	w.rec = draft.New(w.deps.Now())
	w.lastErr = nil

	return nil
}

// Start begins a new annotation, replacing any stored draft with an empty
// record on the patient step.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}

	w.rec = draft.New(w.deps.Now())
	w.lastErr = nil
	w.persist(ctx)

	return nil
}

// SelectPatient sets the patient. Allowed on the patient step only.
func (w *Wizard) SelectPatient(ctx context.Context, id string) error {
	return w.update(ctx, draft.StepPatient, func(r *draft.Record) error {
		id = strings.TrimSpace(id)
		if id == "" {
			r.SelectedPatientID = nil
			return nil
		}
		r.SelectedPatientID = &id
		return nil
	})
}

// SetVisit sets the visit metadata. duration may be nil.
func (w *Wizard) SetVisit(ctx context.Context, date, clock string, duration *int) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return ErrInvalidVisit
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return ErrInvalidVisit
	}
	if duration != nil && *duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidVisit)
	}

	return w.update(ctx, draft.StepVisit, func(r *draft.Record) error {
		r.VisitDate = date
		r.VisitTime = clock
		if duration != nil {
			minutes := *duration
			r.VisitDuration = &minutes
		} else {
			r.VisitDuration = nil
		}
		return nil
	})
}

// SetTranscription records the nurse's edits to the transcript.
func (w *Wizard) SetTranscription(ctx context.Context, text string) error {
	return w.update(ctx, draft.StepTranscription, func(r *draft.Record) error {
		r.Transcription = text
		return nil
	})
}

// SetAnnotation records the nurse's edits to the generated annotation.
func (w *Wizard) SetAnnotation(ctx context.Context, text string) error {
	return w.update(ctx, draft.StepResult, func(r *draft.Record) error {
		r.Annotation = text
		return nil
	})
}

// Next moves forward from a step that is left by user confirmation:
// patient (once a patient is selected) and visit.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}

	t := transitions[w.rec.Step]
	if !t.manual {
		return w.fail(ErrTransitionNotAllowed)
	}
	if t.guard != nil {
		if err := t.guard(w.rec); err != nil {
			return w.fail(err)
		}
	}

	w.rec.Step = t.next
	w.persist(ctx)

	return nil
}

// Back returns to the previous step. Entered values are kept.
func (w *Wizard) Back(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}

	t := transitions[w.rec.Step]
	if t.prev == "" {
		return w.fail(ErrTransitionNotAllowed)
	}

	w.rec.Step = t.prev
	w.persist(ctx)

	return nil
}

// update applies a field change allowed only on step and persists it.
func (w *Wizard) update(ctx context.Context, step draft.Step, apply func(*draft.Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return err
	}
	if w.rec.Step != step {
		return fmt.Errorf("%w: at %s, expected %s", ErrTransitionNotAllowed, w.rec.Step, step)
	}
	if err := apply(&w.rec); err != nil {
		return w.fail(err)
	}

	w.lastErr = nil
	w.persist(ctx)

	return nil
}

// ready must be called with mu held.
func (w *Wizard) ready() error {
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	return nil
}

// fail must be called with mu held.
func (w *Wizard) fail(err error) error {
	w.lastErr = err
	return err
}

// persist must be called with mu held.
func (w *Wizard) persist(ctx context.Context) {
	if w.deps.Drafts == nil {
		return
	}

	w.rec.UpdatedAt = w.deps.Now()
	w.deps.Drafts.Save(ctx, w.rec)
}

func logDropped(op string, err error) {
	slog.Debug("result dropped after close", "op", op, "error", err)
}
