package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// RecorderConfig holds configuration for the audio recorder.
type RecorderConfig struct {
	SampleRate int    // Hz
	Channels   int    // 1 for mono
	MP3Path    string // where the finished visit is written

	// MaxDuration drops audio past this length. Zero means no limit.
	MaxDuration time.Duration
}

// Recorder spools S16LE PCM from a channel to a scratch file and encodes it
// to MP3 once the channel closes.
type Recorder struct {
	conf     RecorderConfig
	input    <-chan []byte
	pcmPath  string
	maxBytes int64

	pcmFile *os.File
	written atomic.Int64
	done    sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewRecorder validates config and returns an idle recorder.
func NewRecorder(config RecorderConfig, input <-chan []byte) (*Recorder, error) {
	switch {
	case input == nil:
		return nil, errors.New("input channel cannot be nil")
	case config.SampleRate <= 0:
		return nil, errors.New("sample rate must be positive")
	case config.Channels <= 0:
		return nil, errors.New("channels must be positive")
	case config.MP3Path == "":
		return nil, errors.New("MP3 path cannot be empty")
	}

	r := &Recorder{
		conf:    config,
		input:   input,
		pcmPath: config.MP3Path + ".tmp.pcm",
	}
	if config.MaxDuration > 0 {
		r.maxBytes = r.bytesPerSecond() * int64(config.MaxDuration/time.Second)
	}

	return r, nil
}

// Start begins spooling. It must be called before anything is sent on the
// input channel.
func (r *Recorder) Start(ctx context.Context) error {
	if r.pcmFile != nil {
		return errors.New("recorder already started")
	}

	pcmFile, err := os.Create(r.pcmPath)
	if err != nil {
		return fmt.Errorf("failed to create PCM file %s: %w", r.pcmPath, err)
	}
	r.pcmFile = pcmFile

	r.done.Go(func() {
		defer r.finish()
		r.spool(ctx)
	})

	return nil
}

func (r *Recorder) spool(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-r.input:
			if !ok {
				return
			}

			data = r.clamp(data)
			if len(data) == 0 {
				continue
			}

			n, err := r.pcmFile.Write(data)
			r.written.Add(int64(n))
			if err != nil {
				r.setError(fmt.Errorf("failed to write PCM data: %w", err))
				return
			}
		}
	}
}

// clamp trims data so the spool never passes the duration limit.
func (r *Recorder) clamp(data []byte) []byte {
	if r.maxBytes == 0 {
		return data
	}

	room := r.maxBytes - r.written.Load()
	if room <= 0 {
		return nil
	}
	if int64(len(data)) > room {
		return data[:room]
	}

	return data
}

func (r *Recorder) finish() {
	if err := r.pcmFile.Close(); err != nil {
		r.setError(fmt.Errorf("failed to close PCM file: %w", err))
		return
	}
	if r.err != nil {
		return
	}

	if err := r.encode(); err != nil {
		r.setError(fmt.Errorf("failed to convert to MP3: %w", err))
		return
	}

	if err := os.Remove(r.pcmPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove PCM scratch file", "path", r.pcmPath, "error", err)
	}

	slog.Info("visit recorded", "output", r.conf.MP3Path, "seconds", r.Elapsed().Seconds())
}

// encode writes the MP3 next to its final path and renames it into place,
// so a crash never leaves a truncated recording under the final name.
func (r *Recorder) encode() error {
	pcm, err := os.ReadFile(r.pcmPath)
	if err != nil {
		return fmt.Errorf("failed to read PCM file: %w", err)
	}

	samples := make([]int16, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
	}

	channels := r.conf.Channels
	// shine-mp3 mishandles mono input
	if channels == 1 {
		samples = monoToStereo(samples)
		channels = 2
	}

	partial := r.conf.MP3Path + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create MP3 file %s: %w", partial, err)
	}

	if err := mp3encoder.NewEncoder(r.conf.SampleRate, channels).Write(out, samples); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode MP3: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close MP3 file: %w", err)
	}

	return os.Rename(partial, r.conf.MP3Path)
}

func monoToStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}

	return stereo
}

// Wait blocks until the MP3 is written or recording failed.
func (r *Recorder) Wait() error {
	r.done.Wait()
	return r.err
}

// Clip waits for the recording to finish and describes the result.
func (r *Recorder) Clip() (Clip, error) {
	if err := r.Wait(); err != nil {
		return Clip{}, err
	}

	return Clip{
		Path:     r.conf.MP3Path,
		Filename: filepath.Base(r.conf.MP3Path),
		Duration: r.Elapsed(),
	}, nil
}

// BytesWritten returns the number of PCM bytes spooled so far.
func (r *Recorder) BytesWritten() int64 {
	return r.written.Load()
}

// Elapsed converts the spooled PCM into recorded time. Paused periods do
// not count since no samples arrive while the device is stopped.
func (r *Recorder) Elapsed() time.Duration {
	perSecond := r.bytesPerSecond()
	if perSecond == 0 {
		return 0
	}

	return time.Duration(r.BytesWritten() * int64(time.Second) / perSecond)
}

// Full reports whether the duration limit has been reached.
func (r *Recorder) Full() bool {
	return r.maxBytes > 0 && r.BytesWritten() >= r.maxBytes
}

func (r *Recorder) bytesPerSecond() int64 {
	return int64(r.conf.SampleRate * r.conf.Channels * bytesPerSample)
}

func (r *Recorder) setError(err error) {
	r.errOnce.Do(func() {
		r.err = err
		slog.Error("audio recorder error", "error", err)
	})
}
