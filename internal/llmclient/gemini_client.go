// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/webprobe/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client     *genai.Client
	model      string
	maxRetries uint64
	logger     *zap.Logger
}

// NewGeminiClient initializes the client. cfg.Endpoint overrides the API
// base URL.
func NewGeminiClient(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("llm_client.gemini"),
	}, nil
}

func (c *GeminiClient) Provider() string { return config.ProviderGemini }
func (c *GeminiClient) Model() string    { return c.model }
func (c *GeminiClient) Close() error     { return nil }

// Generate sends the screenshots and prompt as one user turn.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for i, img := range req.Images {
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, fmt.Errorf("image %d is not base64: %w", i, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	var out *Response
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, gc)
		if err != nil {
			return classifyGeminiError(err)
		}
		text := resp.Text()
		if text == "" {
			reason := "unknown"
			if len(resp.Candidates) > 0 {
				reason = string(resp.Candidates[0].FinishReason)
			}
			return backoff.Permanent(fmt.Errorf("%w (finish reason: %s)", ErrEmptyResponse, reason))
		}
		out = &Response{Text: text, Model: c.model}
		if resp.ModelVersion != "" {
			out.Model = resp.ModelVersion
		}
		if u := resp.UsageMetadata; u != nil {
			out.InputTokens = int(u.PromptTokenCount)
			out.OutputTokens = int(u.CandidatesTokenCount)
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

// classifyGeminiError keeps rate limits and server errors retryable.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if transientStatus(apiErr.Code) {
			return err
		}
		return backoff.Permanent(err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		if transientStatus(apiErrPtr.Code) {
			return err
		}
		return backoff.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}
