package llmclient

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/webprobe/internal/config"
)

func TestNewAnthropicClient(t *testing.T) {
	cfg := testVisionConfig(config.ProviderAnthropic, "")
	cfg.Model = ""
	c, err := NewAnthropicClient(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicEndpoint, c.endpoint)
	assert.Equal(t, defaultAnthropicModel, c.Model())
	assert.Equal(t, "anthropic", c.Provider())

	cfg.APIKey = ""
	_, err = NewAnthropicClient(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "API key is required")
}

func TestAnthropicClient_Generate(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body := decodeBody(t, r)
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, "You locate UI elements.", body["system"])
		msgs := body["messages"].([]any)
		content := msgs[0].(map[string]any)["content"].([]any)
		require.Len(t, content, 2)
		assert.Equal(t, "image", content[0].(map[string]any)["type"])
		assert.Equal(t, "text", content[1].(map[string]any)["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"claude-test","content":[{"type":"text","text":"{\"found\":true}"}],"stop_reason":"end_turn","usage":{"input_tokens":1200,"output_tokens":40}}`))
	})
	core, logs := observer.New(zapcore.InfoLevel)
	c, err := NewAnthropicClient(testVisionConfig(config.ProviderAnthropic, srv.URL), zap.New(core))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"found":true}`, resp.Text)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Equal(t, 1200, resp.InputTokens)
	assert.Equal(t, 40, resp.OutputTokens)
	assert.True(t, resp.UsageReported)
	assert.Equal(t, 1, logs.FilterMessage("Model generation complete.").Len())
}

func TestAnthropicClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})
	c, err := NewAnthropicClient(testVisionConfig(config.ProviderAnthropic, srv.URL), zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "test-model", resp.Model)
	assert.False(t, resp.UsageReported, "usage was omitted")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicClient_PermanentErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"invalid"}`, "status 400"},
		{"malformed body", http.StatusOK, `not json`, "failed to decode response payload"},
		{"no text", http.StatusOK, `{"content":[],"stop_reason":"max_tokens"}`, "max_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c, err := NewAnthropicClient(testVisionConfig(config.ProviderAnthropic, srv.URL), zap.NewNop())
			require.NoError(t, err)

			_, err = c.Generate(context.Background(), testRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
		})
	}
}

func TestAnthropicClient_DefaultsMaxTokens(t *testing.T) {
	c, err := NewAnthropicClient(testVisionConfig(config.ProviderAnthropic, "http://unused"), zap.NewNop())
	require.NoError(t, err)
	payload := c.buildPayload(Request{Prompt: "p"})
	assert.Equal(t, 1024, payload.MaxTokens)
	require.Len(t, payload.Messages[0].Content, 1)
}
