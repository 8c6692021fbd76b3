package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ChatGPTClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewChatGPTClient(config.ChatGPTConfig{
		Endpoint: server.URL,
		Model:    "gpt-4o",
		APIKey:   "sk-test",
	})
}

func TestCompleteSendsTypedRequest(t *testing.T) {
	t.Parallel()

	var got chatRequest
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "}}]}`))
	})

	out, err := client.Complete(context.Background(), ports.CompletionRequest{
		System:      "sys",
		Prompt:      "summarize this",
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "  hello  ", out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "summarize this"}, got.Messages[1])
}

func TestCompleteDefaultsSystemPrompt(t *testing.T) {
	t.Parallel()

	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "You are a concise academic assistant.", got.Messages[0].Content)
}

func TestCompleteMalformedResponse(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"no choices": `{"choices":[]}`,
		"no message": `{"choices":[{}]}`,
		"not json":   `<html>`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "p"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
		})
	}
}

func TestCompleteHTTPErrorPropagates(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrMalformedResponse))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: "http://localhost", Model: "m"})
	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotConfigured))
}
