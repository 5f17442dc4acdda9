package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medannot/medannot/pkg/collections"
)

// Patient is someone the nurse visits.
type Patient struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	BirthDate   string     `json:"birthDate,omitempty"`
	Pathologies []string   `json:"pathologies"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
}

// FullName is "First Last".
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age returns the age in whole years at now, or 0 when the birth date is
// unknown.
func (p Patient) Age(now time.Time) int {
	born, err := time.Parse(time.DateOnly, p.BirthDate)
	if err != nil {
		return 0
	}

	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}

	return max(age, 0)
}

type patientRow struct {
	ID          string        `db:"id"`
	FirstName   string        `db:"first_name"`
	LastName    string        `db:"last_name"`
	BirthDate   string        `db:"birth_date"`
	Pathologies string        `db:"pathologies"`
	Notes       string        `db:"notes"`
	CreatedAt   int64         `db:"created_at"`
	ArchivedAt  sql.NullInt64 `db:"archived_at"`
}

func (r patientRow) patient() Patient {
	p := Patient{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		BirthDate: r.BirthDate,
		Notes:     r.Notes,
		CreatedAt: fromMillis(r.CreatedAt),
	}

	if err := json.Unmarshal([]byte(r.Pathologies), &p.Pathologies); err != nil {
		p.Pathologies = nil
	}

	if r.ArchivedAt.Valid {
		t := fromMillis(r.ArchivedAt.Int64)
		p.ArchivedAt = &t
	}

	return p
}

const patientColumns = `id, first_name, last_name, birth_date, pathologies, notes, created_at, archived_at`

// CreatePatient inserts p with a fresh ID and returns the stored patient.
func (d *DB) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.LastName == "" {
		return Patient{}, fmt.Errorf("%w: last name is required", ErrInvalid)
	}

	if p.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, p.BirthDate); err != nil {
			return Patient{}, fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalid)
		}
	}

	if p.Pathologies == nil {
		p.Pathologies = []string{}
	}

	pathologies, err := json.Marshal(p.Pathologies)
	if err != nil {
		return Patient{}, fmt.Errorf("encode pathologies: %w", err)
	}

	p.ID = uuid.NewString()
	p.CreatedAt = d.now().Truncate(time.Millisecond)
	p.ArchivedAt = nil

	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO patients (id, first_name, last_name, birth_date, pathologies, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.FirstName, p.LastName, p.BirthDate, string(pathologies), p.Notes, toMillis(p.CreatedAt))
		return err
	})
	if err != nil {
		return Patient{}, fmt.Errorf("failed to create patient: %w", err)
	}

	return p, nil
}

// GetPatient returns the patient with id, archived or not.
func (d *DB) GetPatient(ctx context.Context, id string) (Patient, error) {
	var row patientRow

	err := d.db.GetContext(ctx, &row, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Patient{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Patient{}, fmt.Errorf("failed to get patient: %w", err)
	}

	return row.patient(), nil
}

// ListPatients returns active patients ordered by last then first name.
func (d *DB) ListPatients(ctx context.Context) ([]Patient, error) {
	var rows []patientRow

	err := d.db.SelectContext(ctx, &rows, `
		SELECT `+patientColumns+` FROM patients
		WHERE archived_at IS NULL
		ORDER BY last_name COLLATE NOCASE, first_name COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	return collections.Apply(rows, patientRow.patient), nil
}

// ArchivePatient hides a patient from the list. Their annotations are kept.
func (d *DB) ArchivePatient(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE patients SET archived_at = ? WHERE id = ? AND archived_at IS NULL`,
		toMillis(d.now()), id)
	if err != nil {
		return fmt.Errorf("failed to archive patient: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to archive patient: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}

	return nil
}
