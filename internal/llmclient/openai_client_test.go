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

func TestOpenAIClient_Generate(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		parts := msgs[1].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		img := parts[0].(map[string]any)["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/png;base64,"))
		assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"{\"found\":false}"}}],"usage":{"prompt_tokens":900,"completion_tokens":12,"total_tokens":912}}`))
	})
	c, err := NewOpenAIClient(testVisionConfig(config.ProviderOpenAI, srv.URL+"/v1"), zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"found":false}`, resp.Text)
	assert.Equal(t, "gpt-test", resp.Model)
	assert.Equal(t, 900, resp.InputTokens)
	assert.Equal(t, 12, resp.OutputTokens)
	assert.True(t, resp.UsageReported)
}

func TestOpenAIClient_ErrorHandling(t *testing.T) {
	t.Run("unauthorized is permanent", func(t *testing.T) {
		var calls atomic.Int32
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		})
		c, err := NewOpenAIClient(testVisionConfig(config.ProviderOpenAI, srv.URL+"/v1"), zap.NewNop())
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad key")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		})
		c, err := NewOpenAIClient(testVisionConfig(config.ProviderOpenAI, srv.URL+"/v1"), zap.NewNop())
		require.NoError(t, err)
		resp, err := c.Generate(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text)
		assert.False(t, resp.UsageReported)
		assert.Equal(t, "test-model", resp.Model)
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})
		c, err := NewOpenAIClient(testVisionConfig(config.ProviderOpenAI, srv.URL+"/v1"), zap.NewNop())
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), testRequest())
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestOpenAIClient_RequestWithoutSystemPrompt(t *testing.T) {
	c, err := NewOpenAIClient(testVisionConfig(config.ProviderOpenAI, ""), zap.NewNop())
	require.NoError(t, err)
	req := c.buildRequest(Request{Prompt: "hello"})
	require.Len(t, req.Messages, 1)
	assert.Nil(t, req.ResponseFormat)
	assert.Equal(t, "test-model", req.Model)
}
