package draft

import (
	"encoding/json"
	"fmt"
)

// Step names one screen of the annotation wizard.
type Step string

const (
	StepPatient       Step = "patient"
	StepVisit         Step = "visit"
	StepRecord        Step = "record"
	StepTranscription Step = "transcription"
	StepResult        Step = "result"
)

// Steps lists every step in forward order.
func Steps() []Step {
	return []Step{StepPatient, StepVisit, StepRecord, StepTranscription, StepResult}
}

// Valid reports whether s is one of the five wizard steps.
func (s Step) Valid() bool {
	switch s {
	case StepPatient, StepVisit, StepRecord, StepTranscription, StepResult:
		return true
	default:
		return false
	}
}

// Index returns the zero-based position of s, or -1.
func (s Step) Index() int {
	for i, step := range Steps() {
		if step == s {
			return i
		}
	}

	return -1
}

// Title is the human-readable name shown in headers.
func (s Step) Title() string {
	switch s {
	case StepPatient:
		return "Patient"
	case StepVisit:
		return "Visite"
	case StepRecord:
		return "Enregistrement"
	case StepTranscription:
		return "Transcription"
	case StepResult:
		return "Annotation"
	default:
		return string(s)
	}
}

// UnmarshalJSON rejects unknown step names.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("step must be a string: %w", err)
	}

	step := Step(raw)
	if !step.Valid() {
		return fmt.Errorf("unknown step %q", raw)
	}

	*s = step

	return nil
}
