package llmclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webprobe/internal/config"
)

// onePixelPNG is a valid base64 payload for image parts.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

func testVisionConfig(provider, endpoint string) config.VisionConfig {
	return config.VisionConfig{
		Provider:   provider,
		APIKey:     "test-api-key",
		Model:      "test-model",
		Endpoint:   endpoint,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}
}

func testRequest() Request {
	return Request{
		SystemPrompt: "You locate UI elements.",
		Prompt:       "Find the Save button.",
		Images:       []string{onePixelPNG},
		MaxTokens:    256,
		JSON:         true,
	}
}

// decodeBody reads a JSON request body into a generic map.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}
