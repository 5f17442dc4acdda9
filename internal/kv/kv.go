// Package kv provides the small key-value stores that back draft persistence.
//
// A Store behaves like browser storage: keys are short identifiers, values
// are opaque bytes, and the latest Set wins.
package kv

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// ErrInvalidKey is returned when a key contains characters outside [A-Za-z0-9_.-].
var ErrInvalidKey = errors.New("kv: invalid key")

// Store is a single-writer key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidateKey reports whether key is usable by every Store implementation.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}

	return nil
}

type prefixed struct {
	inner  Store
	prefix string
}

// Prefixed namespaces every key of inner with prefix.
func Prefixed(inner Store, prefix string) Store {
	return prefixed{inner: inner, prefix: prefix}
}

func (p prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
