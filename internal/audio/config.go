package audio

import (
	"github.com/gen2brain/malgo"
)

const (
	// DefaultSampleRate is 16kHz, the native sample rate for Whisper.
	DefaultSampleRate = 16_000
	// DefaultChannels is mono.
	DefaultChannels = 1
	// bytesPerSample for S16LE PCM.
	bytesPerSample = 2
)

// DeviceConfig selects the microphone and the PCM format it delivers.
type DeviceConfig struct {
	// Name picks the first capture device whose name contains it, ignoring
	// case. Empty means the system default.
	Name       string
	Format     malgo.FormatType
	Channels   int
	SampleRate int
}

// DefaultDeviceConfig captures 16-bit mono at 16kHz from the default
// microphone.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:     malgo.FormatS16,
		Channels:   DefaultChannels,
		SampleRate: DefaultSampleRate,
	}
}
