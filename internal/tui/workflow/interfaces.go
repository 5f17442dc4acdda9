package workflow

import (
	"context"
	"time"

	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/wizard"
	"github.com/medannot/medannot/pkg/uictl"
)

// PatientLister lists the patients that can be annotated.
type PatientLister interface {
	ListPatients(ctx context.Context) ([]store.Patient, error)
}

// Take is one microphone recording in progress.
type Take struct {
	StartStopPause uictl.Knob
	// Captured reports recorded seconds against the recording cap.
	Captured uictl.CappedDial[int64]
	Levels   uictl.Levels[int16]
	// Finish stops capture and blocks until the clip is encoded.
	Finish func() (audio.Clip, error)
}

// TakeFunc opens the microphone for a new take. It fails with
// audio.ErrMicrophoneUnavailable when capture cannot start.
type TakeFunc func(ctx context.Context) (*Take, error)

// Session is shared by every phase of one TUI run.
type Session struct {
	Ctx      context.Context
	Wizard   *wizard.Wizard
	Patients PatientLister
	Importer *audio.Importer
	NewTake  TakeFunc
	Now      func() time.Time
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}

	return s.Now()
}
