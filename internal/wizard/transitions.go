package wizard

import (
	"strings"

	"github.com/medannot/medannot/internal/draft"
)

// transition describes the legal moves out of one step.
type transition struct {
	// next is reached by Next when manual is set, otherwise only through the
	// async operation that completes the step.
	next   draft.Step
	prev   draft.Step
	manual bool
	// guard must pass before leaving the step forward.
	guard func(draft.Record) error
}

var transitions = map[draft.Step]transition{
	draft.StepPatient: {
		next:   draft.StepVisit,
		manual: true,
		guard:  requirePatient,
	},
	draft.StepVisit: {
		next:   draft.StepRecord,
		prev:   draft.StepPatient,
		manual: true,
	},
	draft.StepRecord: {
		next: draft.StepTranscription,
		prev: draft.StepVisit,
	},
	draft.StepTranscription: {
		next:  draft.StepResult,
		prev:  draft.StepRecord,
		guard: requireTranscription,
	},
	draft.StepResult: {
		prev:  draft.StepTranscription,
		guard: requireAnnotation,
	},
}

func requirePatient(r draft.Record) error {
	if r.PatientID() == "" {
		return ErrNoPatientSelected
	}
	return nil
}

func requireTranscription(r draft.Record) error {
	if strings.TrimSpace(r.Transcription) == "" {
		return ErrEmptyTranscription
	}
	return nil
}

func requireAnnotation(r draft.Record) error {
	if strings.TrimSpace(r.Annotation) == "" {
		return ErrEmptyAnnotation
	}
	return nil
}

// CanNext reports whether Next would succeed from step with rec.
func CanNext(step draft.Step, rec draft.Record) bool {
	t, ok := transitions[step]
	if !ok || !t.manual {
		return false
	}
	return t.guard == nil || t.guard(rec) == nil
}

// CanBack reports whether step has a predecessor.
func CanBack(step draft.Step) bool {
	t, ok := transitions[step]
	return ok && t.prev != ""
}
