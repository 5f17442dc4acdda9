package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Schema creates the table used by SQL.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// SQL stores entries in the kv_entries table, isolated by namespace.
type SQL struct {
	db        *sqlx.DB
	namespace string
}

// NewSQL returns a Store over db scoped to namespace. The table must exist.
func NewSQL(db *sqlx.DB, namespace string) *SQL {
	return &SQL{db: db, namespace: namespace}
}

// Get returns the value stored for key in this namespace.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM kv_entries WHERE namespace = ? AND key = ?`, s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}

	return value, nil
}

// Set upserts the value for key.
func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.namespace, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}

	return nil
}

// Delete removes key from this namespace.
func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = ? AND key = ?`, s.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}

	return nil
}
