// internal/llmclient/client.go

// Package llmclient talks to hosted multimodal models. Each provider client
// turns a Request carrying a prompt and screenshots into a Response with the
// reply text and token usage.
package llmclient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Request is one multimodal generation call.
type Request struct {
	SystemPrompt string
	Prompt       string
	// Images are base64 encoded PNGs, sent before the prompt text.
	Images      []string
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a JSON-only reply where supported.
	JSON bool
}

// Response is a provider reply.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	// UsageReported is false when the provider omitted token counts.
	UsageReported bool
}

// Client is implemented by every provider client.
type Client interface {
	Provider() string
	Model() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned no content")

// retryPolicy builds the exponential backoff shared by the HTTP providers.
func retryPolicy(ctx context.Context, maxRetries uint64) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
