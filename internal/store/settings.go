package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const structureTemplateKey = "structure_template"

// StructureTemplate returns the nurse's annotation template, or "" when
// none has been set.
func (d *DB) StructureTemplate(ctx context.Context) (string, error) {
	var value string

	err := d.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, structureTemplateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read structure template: %w", err)
	}

	return value, nil
}

// SetStructureTemplate replaces the template. An empty template restores
// the default.
func (d *DB) SetStructureTemplate(ctx context.Context, template string) error {
	var err error
	if template == "" {
		_, err = d.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, structureTemplateKey)
	} else {
		_, err = d.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, structureTemplateKey, template, toMillis(d.now()))
	}
	if err != nil {
		return fmt.Errorf("failed to write structure template: %w", err)
	}

	return nil
}
