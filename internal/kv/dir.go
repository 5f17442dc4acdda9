package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dir stores one file per key inside a directory.
// Writes go to a temporary file first and are renamed into place.
type Dir struct {
	path string
}

// NewDir returns a Dir rooted at path, creating the directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create kv directory %s: %w", path, err)
	}

	return &Dir{path: path}, nil
}

func (d *Dir) file(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	return filepath.Join(d.path, key+".json"), nil
}

// Get reads the file for key.
func (d *Dir) Get(_ context.Context, key string) ([]byte, error) {
	name, err := d.file(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return data, nil
}

// Set replaces the file for key.
func (d *Dir) Set(_ context.Context, key string, value []byte) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.path, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, name); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}

// Delete removes the file for key. Missing files are ignored.
func (d *Dir) Delete(_ context.Context, key string) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}

	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}

	return nil
}
