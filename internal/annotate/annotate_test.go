package annotate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() Request {
	return Request{
		Transcript: "  euh alors pansement refait, plaie propre, tension douze huit  ",
		Patient: PatientContext{
			Name:        "Jeanne Favre",
			Age:         82,
			Pathologies: []string{"diabète type 2", "ulcère jambe droite"},
			Notes:       "Vit seule",
		},
		Visit:    Visit{Date: "2024-03-01", Time: "08:30", DurationMinutes: 45},
		Examples: []string{"Pansement refait, évolution favorable."},
	}
}

func TestUserMessage(t *testing.T) {
	msg := userMessage(sampleRequest())

	assert.Contains(t, msg, "Nom: Jeanne Favre")
	assert.Contains(t, msg, "Âge: 82 ans")
	assert.Contains(t, msg, "Pathologies: diabète type 2, ulcère jambe droite")
	assert.Contains(t, msg, "Durée: 45 minutes")
	assert.Contains(t, msg, DefaultTemplate)
	assert.Contains(t, msg, "### Exemple 1\nPansement refait, évolution favorable.")
	assert.Contains(t, msg, "## Transcription\neuh alors pansement refait, plaie propre, tension douze huit\n")
}

func TestUserMessage_CustomTemplateAndSparsePatient(t *testing.T) {
	req := Request{
		Transcript: "RAS",
		Visit:      Visit{Date: "2024-03-01", Time: "17:00"},
		Template:   "S:\nO:\nA:\nP:",
	}

	msg := userMessage(req)

	assert.Contains(t, msg, "S:\nO:\nA:\nP:")
	assert.NotContains(t, msg, DefaultTemplate)
	assert.NotContains(t, msg, "Âge")
	assert.NotContains(t, msg, "Durée")
	assert.NotContains(t, msg, "Exemple")
}

type messagesStub struct {
	status int
	text   string
	body   map[string]any
}

func (s *messagesStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &s.body)

	w.Header().Set("Content-Type", "application/json")
	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
		return
	}

	resp := map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-5-20250929",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": s.text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newStubClient(t *testing.T, stub *messagesStub) *Client {
	t.Helper()

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	return New("test-key").WithBaseURL(srv.URL + "/")
}

func TestGenerate(t *testing.T) {
	stub := &messagesStub{text: "\nSoins effectués: pansement refait.\n"}
	c := newStubClient(t, stub)

	got, err := c.Generate(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, "Soins effectués: pansement refait.", got)
	assert.Equal(t, "claude-sonnet-4-5-20250929", stub.body["model"])
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := New("").Generate(context.Background(), sampleRequest())
		require.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("empty transcript", func(t *testing.T) {
		_, err := New("k").Generate(context.Background(), Request{Transcript: "   "})
		require.Error(t, err)
	})

	t.Run("empty response", func(t *testing.T) {
		c := newStubClient(t, &messagesStub{text: "  "})
		_, err := c.Generate(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty response")
	})

	t.Run("api error", func(t *testing.T) {
		c := newStubClient(t, &messagesStub{status: http.StatusBadRequest})
		_, err := c.Generate(context.Background(), sampleRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Anthropic API")
	})
}
