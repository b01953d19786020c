package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

func anthropicConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:        config.ProviderAnthropic,
		Model:           "claude-sonnet-4-20250514",
		Temperature:     0.3,
		APITimeout:      5 * time.Second,
		Endpoint:        endpoint,
		AnthropicAPIKey: "test-key",
	}
}

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	cfg := anthropicConfig("")
	cfg.AnthropicAPIKey = ""
	_, err := NewAnthropicClient(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestAnthropicGenerate(t *testing.T) {
	var captured anthropicRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Write([]byte(`{
			"content": [{"type": "text", "text": "Diagnosis: "}, {"type": "text", "text": "cookie expiry."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 80, "output_tokens": 20}
		}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(anthropicConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := client.Generate(context.Background(), schemas.GenerationRequest{
		System: "You are a triage expert.",
		Prompt: "Why did transaction 100 fail?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis: cookie expiry.", result.Text)
	assert.Equal(t, 100, result.Usage.TotalTokens)

	assert.Equal(t, "You are a triage expert.", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, anthropicDefaultMaxTokens, captured.MaxTokens, "max_tokens is mandatory for the Messages API")
}

func TestAnthropicGenerateRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}], "usage": {}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(anthropicConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	result, err := client.Generate(context.Background(), schemas.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicGeneratePermanentError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(anthropicConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnthropicGenerateEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": [], "stop_reason": "max_tokens", "usage": {}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(anthropicConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{Prompt: "hi"})
	assert.Error(t, err)
}
