// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
)

const defaultOpenAIModel = openai.GPT4o

// OpenAIClient calls the chat completions API through go-openai.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	maxRetries uint64
	logger     *zap.Logger
}

// NewOpenAIClient initializes the client. cfg.Endpoint replaces the base URL,
// which lets compatible gateways stand in for the hosted API.
func NewOpenAIClient(cfg config.VisionConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = cfg.Endpoint
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		model:      model,
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("llm_client.openai"),
	}, nil
}

func (c *OpenAIClient) Provider() string { return config.ProviderOpenAI }
func (c *OpenAIClient) Model() string    { return c.model }
func (c *OpenAIClient) Close() error     { return nil }

func (c *OpenAIClient) buildRequest(req Request) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/png;base64," + img,
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.Prompt})

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})

	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

// Generate sends one chat completion, retrying transient failures.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	creq := c.buildRequest(req)
	var out *Response
	operation := func() error {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && !transientStatus(apiErr.HTTPStatusCode) {
				return backoff.Permanent(err)
			}
			var reqErr *openai.RequestError
			if errors.As(err, &reqErr) && !transientStatus(reqErr.HTTPStatusCode) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("Model request failed, retrying.", zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		out = &Response{
			Text:          resp.Choices[0].Message.Content,
			Model:         resp.Model,
			InputTokens:   resp.Usage.PromptTokens,
			OutputTokens:  resp.Usage.CompletionTokens,
			UsageReported: resp.Usage.TotalTokens > 0,
		}
		if out.Model == "" {
			out.Model = c.model
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
