package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/medannot/medannot/pkg/collections"
	"github.com/tcolgate/mp3"
)

// DefaultMaxImportBytes is the largest accepted upload (25 MB), which is
// also the Whisper API limit.
const DefaultMaxImportBytes int64 = 25 << 20

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFileTooLarge      = errors.New("audio file too large")
	ErrEmptyFile         = errors.New("audio file is empty")
)

type format struct {
	ext   string
	mimes []string
}

var formats = []format{
	{ext: ".mp3", mimes: []string{"audio/mpeg", "audio/mp3"}},
	{ext: ".wav", mimes: []string{"audio/wav", "audio/x-wav", "audio/wave"}},
	{ext: ".m4a", mimes: []string{"audio/x-m4a", "audio/m4a", "audio/mp4"}},
	{ext: ".ogg", mimes: []string{"audio/ogg", "application/ogg"}},
	{ext: ".webm", mimes: []string{"audio/webm", "video/webm"}},
}

// sniffed content types that are accepted regardless of the declared type.
// Phones often wrap m4a in a generic mp4 brand.
var acceptedContent = []string{
	"audio/mpeg", "audio/wav", "audio/x-m4a", "audio/mp4", "video/mp4",
	"application/ogg", "audio/ogg", "audio/webm", "video/webm",
}

// AcceptedExtensions lists the importable extensions without dots.
func AcceptedExtensions() []string {
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = strings.TrimPrefix(f.ext, ".")
	}

	return exts
}

func lookupFormat(name, declaredMIME string) (format, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := collections.Find(formats, func(f format) bool { return f.ext == ext }); ok {
		return f, true
	}

	mediaType, _, err := mime.ParseMediaType(declaredMIME)
	if err != nil {
		return format{}, false
	}

	return collections.Find(formats, func(f format) bool {
		return slices.Contains(f.mimes, mediaType)
	})
}

func acceptedMIME(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if collections.Any(acceptedContent, m.Is) {
			return true
		}
	}

	return false
}

// Importer validates audio files chosen by the user and stages them for
// transcription.
type Importer struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewImporter stages accepted files in dir. maxBytes <= 0 selects
// DefaultMaxImportBytes.
func NewImporter(dir string, maxBytes int64) *Importer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImportBytes
	}

	return &Importer{dir: dir, maxBytes: maxBytes, now: time.Now}
}

// WithClock replaces the clock used to name staged files.
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// MaxBytes returns the upload limit.
func (im *Importer) MaxBytes() int64 {
	return im.maxBytes
}

// Validate checks size, name or declared type, and the actual content.
// It returns the staging extension and the detected content type, and
// leaves r positioned at the start.
func (im *Importer) Validate(name, declaredMIME string, size int64, r io.ReadSeeker) (string, *mimetype.MIME, error) {
	if size == 0 {
		return "", nil, ErrEmptyFile
	}

	if size > im.maxBytes {
		return "", nil, fmt.Errorf("%w: %.1f MB exceeds the %d MB limit",
			ErrFileTooLarge, float64(size)/(1<<20), im.maxBytes>>20)
	}

	f, ok := lookupFormat(name, declaredMIME)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q (accepted: %s)",
			ErrUnsupportedFormat, name, strings.Join(AcceptedExtensions(), ", "))
	}

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to inspect %s: %w", name, err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", nil, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	if !acceptedMIME(mt) {
		return "", nil, fmt.Errorf("%w: %q contains %s", ErrUnsupportedFormat, name, mt.String())
	}

	return f.ext, mt, nil
}

// ImportFile validates the file at path and stages a copy.
func (im *Importer) ImportFile(path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Clip{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return im.ImportReader(filepath.Base(path), "", info.Size(), file)
}

// ImportReader validates r and copies it into the staging directory.
// Nothing is written when validation fails.
func (im *Importer) ImportReader(name, declaredMIME string, size int64, r io.ReadSeeker) (Clip, error) {
	ext, mt, err := im.Validate(name, declaredMIME, size, r)
	if err != nil {
		return Clip{}, err
	}

	duration := probeDuration(mt, r)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Clip{}, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	if err := os.MkdirAll(im.dir, 0o700); err != nil {
		return Clip{}, fmt.Errorf("failed to create import directory: %w", err)
	}

	// Imports from several profiles can land in the same second.
	filename := fmt.Sprintf("import-%s-%s%s", im.now().Format("20060102-150405"), uuid.NewString()[:8], ext)
	dest := filepath.Join(im.dir, filename)

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	_, err = io.Copy(out, io.LimitReader(r, im.maxBytes))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return Clip{}, fmt.Errorf("failed to copy %s: %w", name, err)
	}

	slog.Info("audio imported", "source", name, "path", dest, "type", mt.String(), "seconds", duration.Seconds())

	return Clip{Path: dest, Filename: filename, Duration: duration}, nil
}

// probeDuration reads container metadata. Formats without a cheap way to
// find the duration report zero.
func probeDuration(mt *mimetype.MIME, r io.ReadSeeker) time.Duration {
	switch {
	case mt.Is("audio/wav"):
		d, err := wav.NewDecoder(r).Duration()
		if err != nil {
			slog.Debug("wav duration unavailable", "error", err)
			return 0
		}

		return d

	case mt.Is("audio/mpeg"):
		return mp3Duration(r)

	default:
		return 0
	}
}

func mp3Duration(r io.Reader) time.Duration {
	var (
		total   time.Duration
		frame   mp3.Frame
		skipped int
	)

	dec := mp3.NewDecoder(r)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("mp3 frame walk stopped", "error", err)
			}

			return total
		}

		total += frame.Duration()
	}
}
