package llmclient

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
)

func TestGeminiClient_Generate(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "test-model:generateContent"), r.URL.Path)
		body := decodeBody(t, r)
		contents := body["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0], "inlineData")
		assert.Equal(t, "Find the Save button.", parts[1].(map[string]any)["text"])
		assert.Contains(t, body, "systemInstruction")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"found\":true}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":300,"candidatesTokenCount":20,"totalTokenCount":320},"modelVersion":"gemini-test"}`))
	})
	c, err := NewGeminiClient(context.Background(), testVisionConfig(config.ProviderGemini, srv.URL), zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"found":true}`, resp.Text)
	assert.Equal(t, "gemini-test", resp.Model)
	assert.Equal(t, 300, resp.InputTokens)
	assert.Equal(t, 20, resp.OutputTokens)
	assert.True(t, resp.UsageReported)
}

func TestGeminiClient_Errors(t *testing.T) {
	t.Run("invalid image", func(t *testing.T) {
		c, err := NewGeminiClient(context.Background(), testVisionConfig(config.ProviderGemini, "http://unused"), zap.NewNop())
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), Request{Prompt: "p", Images: []string{"%%%"}})
		assert.ErrorContains(t, err, "not base64")
	})

	t.Run("bad request is permanent", func(t *testing.T) {
		var calls atomic.Int32
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad image","status":"INVALID_ARGUMENT"}}`))
		})
		c, err := NewGeminiClient(context.Background(), testVisionConfig(config.ProviderGemini, srv.URL), zap.NewNop())
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := testVisionConfig(config.ProviderGemini, "")
		cfg.APIKey = ""
		_, err := NewGeminiClient(context.Background(), cfg, zap.NewNop())
		assert.ErrorContains(t, err, "API key is required")
	})
}
