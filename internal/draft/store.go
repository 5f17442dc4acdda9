package draft

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/medannot/medannot/internal/kv"
)

const (
	// StorageKey holds the serialised Record in the durable store.
	StorageKey = "draft_annotation"
	// SessionKey marks that the restore prompt was resolved this session.
	SessionKey = "draft_restore_resolved"
)

// Store reads and writes the draft. None of its methods report storage
// failures: a draft is a convenience and a broken one reads as absent.
type Store struct {
	durable kv.Store
	session kv.Store
}

// NewStore builds a Store over a durable store and a session-scoped store.
func NewStore(durable, session kv.Store) *Store {
	return &Store{durable: durable, session: session}
}

// Save replaces the stored record.
func (s *Store) Save(ctx context.Context, rec Record) {
	rec.SchemaVersion = SchemaVersion

	data, err := json.Marshal(rec)
	if err != nil {
		slog.Debug("draft not saved: encode failed", "error", err)
		return
	}

	if err := s.durable.Set(ctx, StorageKey, data); err != nil {
		slog.Debug("draft not saved: write failed", "error", err)
	}
}

// Load returns the stored record. ok is false when nothing usable is stored.
func (s *Store) Load(ctx context.Context) (rec Record, ok bool) {
	data, err := s.durable.Get(ctx, StorageKey)
	if err != nil {
		return Record{}, false
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Debug("ignoring unreadable draft", "error", err)
		return Record{}, false
	}

	if rec.SchemaVersion != SchemaVersion {
		slog.Debug("ignoring draft from another schema", "version", rec.SchemaVersion)
		return Record{}, false
	}

	if !rec.Step.Valid() {
		return Record{}, false
	}

	return rec, true
}

// Clear deletes the record and the session marker.
func (s *Store) Clear(ctx context.Context) {
	if err := s.durable.Delete(ctx, StorageKey); err != nil {
		slog.Debug("draft delete failed", "error", err)
	}

	if err := s.session.Delete(ctx, SessionKey); err != nil {
		slog.Debug("session marker delete failed", "error", err)
	}
}

// HasMeaningfulDraft reports whether a record exists with a non-blank
// transcription or annotation.
func (s *Store) HasMeaningfulDraft(ctx context.Context) bool {
	rec, ok := s.Load(ctx)

	return ok && rec.Meaningful()
}

// SessionResolved reports whether the restore prompt was already answered
// in this session.
func (s *Store) SessionResolved(ctx context.Context) bool {
	_, err := s.session.Get(ctx, SessionKey)

	return err == nil
}

// MarkSessionResolved records that the restore prompt was answered.
func (s *Store) MarkSessionResolved(ctx context.Context) {
	if err := s.session.Set(ctx, SessionKey, []byte("true")); err != nil {
		slog.Debug("session marker write failed", "error", err)
	}
}
