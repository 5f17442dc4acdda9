// Package workdir lays out the MedAnnot home directory: database, draft,
// recordings and logs.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves paths inside one MedAnnot home.
type Layout struct {
	root string
}

// New returns the layout rooted at home, or at the default root when home
// is empty.
func New(home string) (Layout, error) {
	if home != "" {
		return Layout{root: home}, nil
	}

	root, err := Root()
	if err != nil {
		return Layout{}, err
	}

	return Layout{root: root}, nil
}

// Root returns the default base directory for all MedAnnot files.
// The path is expanded at runtime to resolve to:
//
//	$HOME/Documents/MedAnnot
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "MedAnnot"), nil
}

// Root is the home directory of this layout.
func (l Layout) Root() string { return l.root }

// DraftDir holds the persisted draft; it plays the part of the browser's
// local storage.
func (l Layout) DraftDir() string { return filepath.Join(l.root, "draft") }

// RecordingsDir holds recorded and imported audio.
func (l Layout) RecordingsDir() string { return filepath.Join(l.root, "recordings") }

// DatabasePath is the SQLite database with patients and annotations.
func (l Layout) DatabasePath() string { return filepath.Join(l.root, "medannot.db") }

// LogPath is where the terminal client writes its logs.
func (l Layout) LogPath() string { return filepath.Join(l.root, "logs", "medannot.log") }

// Prep ensures that every directory of the layout exists.
func (l Layout) Prep() error {
	for _, dir := range []string{l.root, l.DraftDir(), l.RecordingsDir(), filepath.Dir(l.LogPath())} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
