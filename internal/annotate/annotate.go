// Package annotate generates structured clinical annotations from dictation
// transcripts with the Anthropic API.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrMissingAPIKey is returned before any request when no key is configured.
var ErrMissingAPIKey = errors.New("API key required: set ANTHROPIC_API_KEY or run `medannot config set-key anthropic`")

// PatientContext is what the model is told about the patient.
type PatientContext struct {
	Name        string
	Age         int
	Pathologies []string
	Notes       string
}

// Visit describes when the documented visit happened.
type Visit struct {
	Date            string
	Time            string
	DurationMinutes int
}

// Request is everything used to generate one annotation.
type Request struct {
	Transcript string
	Patient    PatientContext
	Visit      Visit
	// Template is the nurse's structure. Empty selects DefaultTemplate.
	Template string
	// Examples are earlier annotations for the same patient, newest first.
	Examples []string
}

// Client handles Anthropic API requests for annotation generation.
type Client struct {
	apiKey  string
	baseURL string
	model   anthropic.Model
}

// New creates a generation client.
func New(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  anthropic.ModelClaudeSonnet4_5_20250929,
	}
}

// WithBaseURL points the client at another Messages API endpoint.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// Generate returns the annotation text for req.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return "", errors.New("transcript is empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage(req))),
		},
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate annotation via Anthropic API: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}

	annotation := strings.TrimSpace(out.String())
	if annotation == "" {
		return "", errors.New("empty response from Anthropic API")
	}

	return annotation, nil
}
