// Package store keeps patients, saved annotations and nurse settings in a
// local SQLite database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medannot/medannot/internal/kv"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a patient or annotation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when required fields are missing.
	ErrInvalid = errors.New("invalid input")
)

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id          TEXT PRIMARY KEY,
	first_name  TEXT NOT NULL,
	last_name   TEXT NOT NULL,
	birth_date  TEXT NOT NULL DEFAULT '',
	pathologies TEXT NOT NULL DEFAULT '[]',
	notes       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	archived_at INTEGER
);

CREATE TABLE IF NOT EXISTS annotations (
	id             TEXT PRIMARY KEY,
	patient_id     TEXT NOT NULL REFERENCES patients(id),
	visit_date     TEXT NOT NULL,
	visit_time     TEXT NOT NULL,
	visit_duration INTEGER,
	audio_duration INTEGER NOT NULL DEFAULT 0,
	transcription  TEXT NOT NULL,
	content        TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS annotations_patient_created
	ON annotations (patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// DB is the MedAnnot database.
type DB struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: an in-memory database lives per connection, and a
	// single writer avoids SQLITE_BUSY on files.
	db.SetMaxOpenConns(1)

	store, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// New wraps an open connection and creates the schema.
func New(ctx context.Context, db *sqlx.DB) (*DB, error) {
	if _, err := db.ExecContext(ctx, schema+kv.Schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Conn exposes the connection for other tables sharing the file, such as
// kv_entries.
func (d *DB) Conn() *sqlx.DB {
	return d.db
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
