// Package audio captures dictations from the microphone or accepts imported
// audio files, and hands both to transcription as a Clip.
package audio

import (
	"math"
	"time"
)

// Clip is a finished piece of audio ready for transcription.
type Clip struct {
	// Path is the audio file on disk.
	Path string
	// Filename is the name sent to the transcription service; its extension
	// tells the service which container to expect.
	Filename string
	// Duration is zero when it could not be derived from the file.
	Duration time.Duration
}

// Seconds returns the duration rounded to whole seconds.
func (c Clip) Seconds() int {
	return int(math.Round(c.Duration.Seconds()))
}
