package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/store"
)

// begin claims the busy flag for an operation that must start on step.
// It returns a snapshot of the record to work from.
func (w *Wizard) begin(step draft.Step) (draft.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return draft.Record{}, err
	}
	if w.rec.Step != step {
		return draft.Record{}, w.fail(fmt.Errorf("%w: at %s, expected %s", ErrTransitionNotAllowed, w.rec.Step, step))
	}
	if t := transitions[step]; t.guard != nil {
		if err := t.guard(w.rec); err != nil {
			return draft.Record{}, w.fail(err)
		}
	}

	w.busy = true
	w.lastErr = nil

	return w.rec, nil
}

// end releases the busy flag. On success apply mutates the record, which is
// then persisted.
func (w *Wizard) end(ctx context.Context, op string, err error, apply func(*draft.Record)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.busy = false

	if w.closed {
		logDropped(op, err)
		return ErrClosed
	}
	if err != nil {
		return w.fail(err)
	}

	apply(&w.rec)
	w.persist(ctx)

	return nil
}

// Transcribe sends the clip for transcription. On success the transcript and
// audio duration are stored and the wizard moves to the transcription step;
// on failure it stays on record.
func (w *Wizard) Transcribe(ctx context.Context, clip audio.Clip) error {
	if _, err := w.begin(draft.StepRecord); err != nil {
		return err
	}

	text, err := w.deps.Transcriber.Transcribe(ctx, clip)
	switch {
	case err != nil:
		err = fmt.Errorf("transcription failed: %w", err)
	case strings.TrimSpace(text) == "":
		err = fmt.Errorf("transcription failed: %w", ErrEmptyTranscription)
	}

	return w.end(ctx, "transcribe", err, func(r *draft.Record) {
		r.Transcription = text
		r.AudioDuration = clip.Seconds()
		r.Step = draft.StepTranscription
	})
}

// Generate produces the annotation from the confirmed transcript and moves
// to the result step. On failure the wizard stays on transcription.
func (w *Wizard) Generate(ctx context.Context) error {
	rec, err := w.begin(draft.StepTranscription)
	if err != nil {
		return err
	}

	text, err := w.generate(ctx, rec)

	return w.end(ctx, "generate", err, func(r *draft.Record) {
		r.Annotation = text
		r.Step = draft.StepResult
	})
}

// Regenerate replaces the annotation with a fresh generation. The wizard
// stays on result either way.
func (w *Wizard) Regenerate(ctx context.Context) error {
	rec, err := w.beginResult()
	if err != nil {
		return err
	}

	text, err := w.generate(ctx, rec)

	return w.end(ctx, "regenerate", err, func(r *draft.Record) {
		r.Annotation = text
	})
}

// beginResult is begin for result-step operations that do not need an
// annotation yet.
func (w *Wizard) beginResult() (draft.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ready(); err != nil {
		return draft.Record{}, err
	}
	if w.rec.Step != draft.StepResult {
		return draft.Record{}, w.fail(fmt.Errorf("%w: at %s, expected %s", ErrTransitionNotAllowed, w.rec.Step, draft.StepResult))
	}
	if err := requireTranscription(w.rec); err != nil {
		return draft.Record{}, w.fail(err)
	}

	w.busy = true
	w.lastErr = nil

	return w.rec, nil
}

// Save persists the finished annotation. On success the draft is cleared and
// the wizard starts over on the patient step. On failure the wizard stays on
// result and the draft is kept.
func (w *Wizard) Save(ctx context.Context) (store.Annotation, error) {
	rec, err := w.begin(draft.StepResult)
	if err != nil {
		return store.Annotation{}, err
	}

	saved, err := w.deps.Backend.SaveAnnotation(ctx, store.Annotation{
		PatientID:     rec.PatientID(),
		VisitDate:     rec.VisitDate,
		VisitTime:     rec.VisitTime,
		VisitDuration: rec.VisitDuration,
		AudioDuration: rec.AudioDuration,
		Transcription: rec.Transcription,
		Content:       rec.Annotation,
	})
	if err != nil {
		err = fmt.Errorf("save failed: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.busy = false
	if err != nil {
		if w.closed {
			logDropped("save", err)
			return store.Annotation{}, ErrClosed
		}
		return store.Annotation{}, w.fail(err)
	}

	// The annotation is stored, so the draft must never be offered again,
	// even when the wizard was closed meanwhile.
	if w.deps.Drafts != nil {
		w.deps.Drafts.Clear(ctx)
	}
	if w.closed {
		return saved, ErrClosed
	}

	w.rec = draft.New(w.deps.Now())
	w.lastErr = nil

	return saved, nil
}

func (w *Wizard) generate(ctx context.Context, rec draft.Record) (string, error) {
	req, err := w.buildRequest(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text, err := w.deps.Generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return text, nil
}

// buildRequest gathers patient context, the structure template and earlier
// annotations. Only a missing patient is fatal; template and examples are
// optional enrichment.
func (w *Wizard) buildRequest(ctx context.Context, rec draft.Record) (annotate.Request, error) {
	req := annotate.Request{
		Transcript: rec.Transcription,
		Visit: annotate.Visit{
			Date: rec.VisitDate,
			Time: rec.VisitTime,
		},
	}
	if rec.VisitDuration != nil {
		req.Visit.DurationMinutes = *rec.VisitDuration
	}

	if w.deps.Backend == nil {
		return req, nil
	}

	if id := rec.PatientID(); id != "" {
		p, err := w.deps.Backend.GetPatient(ctx, id)
		if err != nil {
			return annotate.Request{}, fmt.Errorf("load patient: %w", err)
		}
		req.Patient = annotate.PatientContext{
			Name:        p.FullName(),
			Age:         p.Age(w.deps.Now()),
			Pathologies: p.Pathologies,
			Notes:       p.Notes,
		}

		if w.deps.Examples > 0 {
			examples, err := w.deps.Backend.RecentAnnotationTexts(ctx, id, w.deps.Examples)
			if err != nil {
				slog.Warn("generating without examples", "error", err)
			}
			req.Examples = examples
		}
	}

	template, err := w.deps.Backend.StructureTemplate(ctx)
	if err != nil {
		slog.Warn("generating with default template", "error", err)
	}
	req.Template = template

	return req, nil
}
