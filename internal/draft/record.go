// Package draft persists the in-progress annotation so that an interrupted
// wizard can be restored later.
package draft

import (
	"strings"
	"time"
)

// SchemaVersion is written with every record. Records carrying another
// version are treated as absent.
const SchemaVersion = 1

// Record is the single in-progress annotation of a profile.
type Record struct {
	SchemaVersion     int       `json:"schemaVersion"`
	SelectedPatientID *string   `json:"selectedPatientId"`
	VisitDate         string    `json:"visitDate"`
	VisitTime         string    `json:"visitTime"`
	VisitDuration     *int      `json:"visitDuration,omitempty"`
	AudioDuration     int       `json:"audioDuration"`
	Transcription     string    `json:"transcription"`
	Annotation        string    `json:"annotation"`
	Step              Step      `json:"step"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// New returns an empty record positioned on the patient step with the visit
// date and time defaulted to now.
func New(now time.Time) Record {
	return Record{
		SchemaVersion: SchemaVersion,
		VisitDate:     now.Format(time.DateOnly),
		VisitTime:     now.Format("15:04"),
		Step:          StepPatient,
	}
}

// Meaningful reports whether the record holds work worth restoring.
func (r Record) Meaningful() bool {
	return strings.TrimSpace(r.Transcription) != "" || strings.TrimSpace(r.Annotation) != ""
}

// PatientID returns the selected patient or "".
func (r Record) PatientID() string {
	if r.SelectedPatientID == nil {
		return ""
	}

	return *r.SelectedPatientID
}
