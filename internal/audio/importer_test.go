package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/medannot/medannot/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavBytes builds a PCM WAV file holding the given seconds of silence at
// 8kHz mono 16-bit.
func wavBytes(t *testing.T, seconds int) []byte {
	t.Helper()

	const (
		sampleRate    = 8000
		channels      = 1
		bitsPerSample = 16
	)

	dataSize := uint32(seconds * sampleRate * channels * bitsPerSample / 8)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, 36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(channels)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample)))
	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}

func importDirEntries(t *testing.T, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)

	return len(entries)
}

func TestImporter_ImportsWAVWithDuration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "imports")
	im := audio.NewImporter(dir, 0)

	data := wavBytes(t, 2)
	clip, err := im.ImportReader("visite.WAV", "audio/wav", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 2, clip.Seconds())
	assert.Equal(t, ".wav", filepath.Ext(clip.Filename))

	staged, err := os.ReadFile(clip.Path)
	require.NoError(t, err)
	assert.Equal(t, data, staged)
}

func TestImporter_ImportFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dictee.wav")
	require.NoError(t, os.WriteFile(src, wavBytes(t, 1), 0o600))

	im := audio.NewImporter(filepath.Join(t.TempDir(), "imports"), 0)

	clip, err := im.ImportFile(src)
	require.NoError(t, err)
	assert.Equal(t, 1, clip.Seconds())
}

func TestImporter_AcceptsOggWithUnknownDuration(t *testing.T) {
	im := audio.NewImporter(filepath.Join(t.TempDir(), "imports"), 0)

	data := append([]byte("OggS\x00\x02"), make([]byte, 128)...)
	clip, err := im.ImportReader("note.ogg", "", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Zero(t, clip.Duration)
}

func TestImporter_Rejects(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	tests := []struct {
		name     string
		filename string
		declared string
		size     int64
		content  []byte
		wantErr  error
	}{
		{name: "pdf extension", filename: "ordonnance.pdf", declared: "application/pdf", content: pdf, wantErr: audio.ErrUnsupportedFormat},
		{name: "pdf renamed to mp3", filename: "ordonnance.mp3", content: pdf, wantErr: audio.ErrUnsupportedFormat},
		{name: "no extension, no type", filename: "blob", content: pdf, wantErr: audio.ErrUnsupportedFormat},
		{name: "too large", filename: "long.mp3", size: 26 << 20, content: []byte("x"), wantErr: audio.ErrFileTooLarge},
		{name: "empty", filename: "empty.wav", size: 0, content: []byte{}, wantErr: audio.ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "imports")
			im := audio.NewImporter(dir, 0)

			size := tt.size
			if size == 0 && len(tt.content) > 0 {
				size = int64(len(tt.content))
			}

			_, err := im.ImportReader(tt.filename, tt.declared, size, bytes.NewReader(tt.content))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, importDirEntries(t, dir), "nothing should be staged")
		})
	}
}

func TestImporter_SameSecondImportsStayApart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "imports")
	frozen := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	im := audio.NewImporter(dir, 0).WithClock(func() time.Time { return frozen })

	first, second := wavBytes(t, 1), wavBytes(t, 2)

	a, err := im.ImportReader("tournee-a.wav", "audio/wav", int64(len(first)), bytes.NewReader(first))
	require.NoError(t, err)
	b, err := im.ImportReader("tournee-b.wav", "audio/wav", int64(len(second)), bytes.NewReader(second))
	require.NoError(t, err)

	require.NotEqual(t, a.Path, b.Path)
	assert.Equal(t, 2, importDirEntries(t, dir))

	staged, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, first, staged)

	staged, err = os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, second, staged)

	require.NoError(t, os.Remove(a.Path))
	_, err = os.Stat(b.Path)
	require.NoError(t, err, "removing one staged clip leaves the other")
}

var errDisconnected = errors.New("client disconnected")

// brokenUpload serves the content normally until it has been rewound
// twice, then fails after the first chunk of the copy.
type brokenUpload struct {
	r      *bytes.Reader
	seeks  int
	copied bool
}

func (b *brokenUpload) Read(p []byte) (int, error) {
	if b.seeks < 2 {
		return b.r.Read(p)
	}
	if b.copied {
		return 0, errDisconnected
	}
	b.copied = true

	return b.r.Read(p[:min(len(p), 16)])
}

func (b *brokenUpload) Seek(offset int64, whence int) (int64, error) {
	b.seeks++
	return b.r.Seek(offset, whence)
}

func TestImporter_FailedCopyLeavesNothingStaged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "imports")
	im := audio.NewImporter(dir, 0)

	data := append([]byte("OggS\x00\x02"), make([]byte, 128)...)
	_, err := im.ImportReader("note.ogg", "", int64(len(data)), &brokenUpload{r: bytes.NewReader(data)})
	require.ErrorIs(t, err, errDisconnected)
	assert.Zero(t, importDirEntries(t, dir), "partial copy should be removed")
}

var _ io.ReadSeeker = (*brokenUpload)(nil)

func TestImporter_DeclaredTypeWithoutExtension(t *testing.T) {
	im := audio.NewImporter(filepath.Join(t.TempDir(), "imports"), 0)

	data := wavBytes(t, 1)
	clip, err := im.ImportReader("blob", "audio/x-wav; codecs=1", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ".wav", filepath.Ext(clip.Filename))
}

func TestAcceptedExtensions(t *testing.T) {
	assert.Equal(t, []string{"mp3", "wav", "m4a", "ogg", "webm"}, audio.AcceptedExtensions())
}
