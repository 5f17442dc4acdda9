package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medannot/medannot/pkg/collections"
)

// Annotation is a saved clinical note for one visit.
type Annotation struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	VisitDate     string    `json:"visitDate"`
	VisitTime     string    `json:"visitTime"`
	VisitDuration *int      `json:"visitDuration,omitempty"`
	AudioDuration int       `json:"audioDuration"`
	Transcription string    `json:"transcription"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
}

type annotationRow struct {
	ID            string        `db:"id"`
	PatientID     string        `db:"patient_id"`
	VisitDate     string        `db:"visit_date"`
	VisitTime     string        `db:"visit_time"`
	VisitDuration sql.NullInt64 `db:"visit_duration"`
	AudioDuration int           `db:"audio_duration"`
	Transcription string        `db:"transcription"`
	Content       string        `db:"content"`
	CreatedAt     int64         `db:"created_at"`
}

func (r annotationRow) annotation() Annotation {
	a := Annotation{
		ID:            r.ID,
		PatientID:     r.PatientID,
		VisitDate:     r.VisitDate,
		VisitTime:     r.VisitTime,
		AudioDuration: r.AudioDuration,
		Transcription: r.Transcription,
		Content:       r.Content,
		CreatedAt:     fromMillis(r.CreatedAt),
	}

	if r.VisitDuration.Valid {
		minutes := int(r.VisitDuration.Int64)
		a.VisitDuration = &minutes
	}

	return a
}

// SaveAnnotation stores a finished annotation for an existing patient.
func (d *DB) SaveAnnotation(ctx context.Context, a Annotation) (Annotation, error) {
	if strings.TrimSpace(a.Content) == "" {
		return Annotation{}, fmt.Errorf("%w: annotation is empty", ErrInvalid)
	}
	if a.PatientID == "" {
		return Annotation{}, fmt.Errorf("%w: patient is required", ErrInvalid)
	}

	a.ID = uuid.NewString()
	a.CreatedAt = d.now().Truncate(time.Millisecond)

	var duration sql.NullInt64
	if a.VisitDuration != nil {
		duration = sql.NullInt64{Int64: int64(*a.VisitDuration), Valid: true}
	}

	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM patients WHERE id = ?`, a.PatientID); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("patient %s: %w", a.PatientID, ErrNotFound)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO annotations (id, patient_id, visit_date, visit_time, visit_duration,
				audio_duration, transcription, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.PatientID, a.VisitDate, a.VisitTime, duration,
			a.AudioDuration, a.Transcription, a.Content, toMillis(a.CreatedAt))
		return err
	})
	if err != nil {
		return Annotation{}, fmt.Errorf("failed to save annotation: %w", err)
	}

	return a, nil
}

// ListAnnotations returns up to limit annotations for a patient, newest
// first. A limit of zero or less means no limit.
func (d *DB) ListAnnotations(ctx context.Context, patientID string, limit int) ([]Annotation, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []annotationRow

	err := d.db.SelectContext(ctx, &rows, `
		SELECT id, patient_id, visit_date, visit_time, visit_duration,
			audio_duration, transcription, content, created_at
		FROM annotations
		WHERE patient_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}

	return collections.Apply(rows, annotationRow.annotation), nil
}

// RecentAnnotationTexts returns the content of the n most recent
// annotations for a patient, used as style examples for generation.
func (d *DB) RecentAnnotationTexts(ctx context.Context, patientID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	var texts []string

	err := d.db.SelectContext(ctx, &texts, `
		SELECT content FROM annotations
		WHERE patient_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, patientID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent annotations: %w", err)
	}

	return texts, nil
}
