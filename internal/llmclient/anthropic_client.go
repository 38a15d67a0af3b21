// internal/llmclient/anthropic_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel    = "claude-sonnet-4-5"
	anthropicVersion         = "2023-06-01"
)

// AnthropicClient calls the Messages API over plain HTTP.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	model      string
	maxRetries uint64
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Messages API payloads --

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float32            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient initializes the client.
func NewAnthropicClient(cfg config.VisionConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("llm_client.anthropic"),
	}, nil
}

func (c *AnthropicClient) Provider() string { return config.ProviderAnthropic }
func (c *AnthropicClient) Model() string    { return c.model }
func (c *AnthropicClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Generate posts the request, retrying transient failures.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var out *Response
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during model request, retrying.", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload anthropicResponse
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		var text strings.Builder
		for _, block := range payload.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return backoff.Permanent(fmt.Errorf("%w (stop reason: %s)", ErrEmptyResponse, payload.StopReason))
		}

		out = &Response{Text: text.String(), Model: payload.Model}
		if out.Model == "" {
			out.Model = c.model
		}
		if payload.Usage != nil {
			out.InputTokens = payload.Usage.InputTokens
			out.OutputTokens = payload.Usage.OutputTokens
			out.UsageReported = true
		}
		c.logger.Info("Model generation complete.",
			zap.Duration("duration", time.Since(start)),
			zap.Int("input_tokens", out.InputTokens),
			zap.Int("output_tokens", out.OutputTokens),
		)
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx, c.maxRetries)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnthropicClient) buildPayload(req Request) anthropicRequest {
	content := make([]anthropicBlock, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropicBlock{
			Type:   "image",
			Source: &anthropicSource{Type: "base64", MediaType: "image/png", Data: img},
		})
	}
	content = append(content, anthropicBlock{Type: "text", Text: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: content}},
	}
}

func (c *AnthropicClient) handleAPIError(status int, body []byte) error {
	c.logger.Error("Anthropic API returned error status", zap.Int("status", status), zap.ByteString("response", body))
	err := fmt.Errorf("anthropic API error: status %d, body: %s", status, body)
	if transientStatus(status) {
		return err
	}
	return backoff.Permanent(err)
}
