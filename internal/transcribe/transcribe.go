// Package transcribe turns dictated audio into text with OpenAI Whisper.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/medannot/medannot/internal/audio"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned before any request when no key is configured.
var ErrMissingAPIKey = errors.New("API key required: set OPENAI_API_KEY or run `medannot config set-key openai`")

// DefaultLanguage is the dictation language hint sent to Whisper.
const DefaultLanguage = "fr"

// Client handles Whisper API transcription requests.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	backoff  func() backoff.BackOff
}

// New creates a transcription client for French dictations.
func New(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		language: DefaultLanguage,
		backoff:  newSimpleBackoff,
	}
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Transcribe sends the clip to Whisper and returns the transcript.
// Rate limits and server errors are retried; other failures are returned
// immediately.
func (c *Client) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(opts...)

	attempt := 0
	text, err := backoff.RetryWithData(func() (string, error) {
		attempt++

		f, err := os.Open(clip.Path)
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("open audio: %w", err))
		}
		defer f.Close()

		resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			File:     openai.File(f, clip.Filename, ""),
			Model:    openai.AudioModelWhisper1,
			Language: openai.String(c.language),
		})
		if err != nil {
			if !retryable(err) {
				return "", backoff.Permanent(err)
			}
			slog.Warn("transcription attempt failed", "attempt", attempt, "error", err)
			return "", err
		}

		return resp.Text, nil
	}, backoff.WithContext(c.backoff(), ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	return text, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	// Transport failures carry no status.
	return true
}

func newSimpleBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
}
