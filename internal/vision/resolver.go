// Package vision implements schemas.VisionResolver on top of a hosted
// multimodal model client.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/config"
	"github.com/xkilldash9x/webprobe/internal/cost"
	"github.com/xkilldash9x/webprobe/internal/llmclient"
)

// Options tunes a Resolver.
type Options struct {
	// RateLimit is calls per second. Zero or less disables limiting.
	RateLimit   float64
	Burst       int
	MaxTokens   int
	Temperature float32
	// Estimator fills in usage when the provider omits it.
	Estimator *cost.Estimator
}

// OptionsFromConfig maps the vision config section.
func OptionsFromConfig(cfg config.VisionConfig) Options {
	enc := cfg.TokenEncoding
	var counter cost.TokenCounter
	if enc != "" {
		counter = cost.NewTiktokenCounter(enc)
	}
	return Options{
		RateLimit:   cfg.RateLimit,
		Burst:       cfg.Burst,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Estimator:   cost.NewEstimator(counter),
	}
}

// Resolver asks a model client about screenshots.
type Resolver struct {
	client    llmclient.Client
	opts      Options
	limiter   *rate.Limiter
	logger    *zap.Logger
	mu        sync.Mutex
	connected bool
}

var _ schemas.VisionResolver = (*Resolver)(nil)

// New creates a Resolver over client.
func New(client llmclient.Client, opts Options, logger *zap.Logger) *Resolver {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	if opts.Estimator == nil {
		opts.Estimator = cost.NewEstimator(nil)
	}
	return &Resolver{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("vision"),
	}
}

// Connect checks that a client is configured. No request is made.
func (r *Resolver) Connect(context.Context) error {
	if r.client == nil {
		return schemas.Unavailable(schemas.BackendVision, "no model client")
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	r.logger.Info("Vision resolver ready.", zap.String("provider", r.client.Provider()), zap.String("model", r.client.Model()))
	return nil
}

func (r *Resolver) Disconnect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return nil
	}
	r.connected = false
	return r.client.Close()
}

func (r *Resolver) Provider() string {
	if r.client == nil {
		return ""
	}
	return r.client.Provider()
}

type findAnswer struct {
	Found       bool    `json:"found"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	Alternative string  `json:"alternative"`
}

func (r *Resolver) FindElement(ctx context.Context, req schemas.FindElementRequest) (*schemas.FindElementResult, error) {
	width, height := dimensions(req.Screenshot)
	prompt := findElementPrompt(req.Description, width, height)
	resp, usage, err := r.generate(ctx, "findElement", req.Screenshot, prompt)
	if err != nil {
		return nil, err
	}
	ans, err := parseAnswer[findAnswer](resp.Text)
	if err != nil {
		return nil, err
	}

	out := &schemas.FindElementResult{
		Confidence:  clamp01(ans.Confidence),
		Reasoning:   ans.Reasoning,
		Alternative: ans.Alternative,
		NotFound:    !ans.Found,
		Usage:       usage,
	}
	if ans.Found {
		if ans.X < 0 || ans.Y < 0 || (width > 0 && (ans.X > float64(width) || ans.Y > float64(height))) {
			r.logger.Warn("Vision model answered outside the screenshot.", zap.Float64("x", ans.X), zap.Float64("y", ans.Y))
			out.NotFound = true
			return out, nil
		}
		out.Coordinates = &schemas.Point{X: ans.X, Y: ans.Y}
	}
	return out, nil
}

type nextActionAnswer struct {
	Action   string         `json:"action"`
	Params   map[string]any `json:"params"`
	Thought  string         `json:"thought"`
	Finished bool           `json:"finished"`
}

func (r *Resolver) NextAction(ctx context.Context, req schemas.NextActionRequest) (*schemas.NextActionResult, error) {
	space := req.ActionSpace
	if len(space) == 0 {
		space = schemas.DefaultActionSpace
	}
	resp, usage, err := r.generate(ctx, "nextAction", req.Screenshot, nextActionPrompt(req.Instruction, space))
	if err != nil {
		return nil, err
	}
	ans, err := parseAnswer[nextActionAnswer](resp.Text)
	if err != nil {
		return nil, err
	}
	action := strings.ToLower(strings.TrimSpace(ans.Action))
	if action == "" && ans.Finished {
		action = "finish"
	}
	if !slices.Contains(space, action) {
		return nil, fmt.Errorf("model proposed %q, which is outside the action space", ans.Action)
	}
	params := ans.Params
	if params == nil {
		params = map[string]any{}
	}
	return &schemas.NextActionResult{
		ActionType:   action,
		ActionParams: params,
		Thought:      ans.Thought,
		Finished:     ans.Finished || action == "finish",
		Usage:        usage,
	}, nil
}

type assertAnswer struct {
	Passed      bool     `json:"passed"`
	Reasoning   string   `json:"reasoning"`
	Actual      string   `json:"actual"`
	Suggestions []string `json:"suggestions"`
}

func (r *Resolver) AssertVisual(ctx context.Context, req schemas.AssertVisualRequest) (*schemas.AssertVisualResult, error) {
	resp, usage, err := r.generate(ctx, "assertVisual", req.Screenshot, assertPrompt(req.Assertion, req.Expected))
	if err != nil {
		return nil, err
	}
	ans, err := parseAnswer[assertAnswer](resp.Text)
	if err != nil {
		return nil, err
	}
	return &schemas.AssertVisualResult{
		Passed:      ans.Passed,
		Reasoning:   ans.Reasoning,
		Actual:      ans.Actual,
		Suggestions: ans.Suggestions,
		Usage:       usage,
	}, nil
}

// generate waits for the rate limiter, calls the model with one screenshot and
// reports usage, estimating it when the provider did not.
func (r *Resolver) generate(ctx context.Context, op, screenshot, prompt string) (*llmclient.Response, schemas.TokenUsage, error) {
	if r.client == nil {
		return nil, schemas.TokenUsage{}, schemas.Unavailable(schemas.BackendVision, "no model client")
	}
	if screenshot == "" {
		return nil, schemas.TokenUsage{}, errors.New("a screenshot is required")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, schemas.TokenUsage{}, err
	}

	resp, err := r.client.Generate(ctx, llmclient.Request{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Images:       []string{screenshot},
		MaxTokens:    r.opts.MaxTokens,
		Temperature:  r.opts.Temperature,
		JSON:         true,
	})
	if err != nil {
		return nil, schemas.TokenUsage{}, err
	}

	images := 1
	usage := schemas.TokenUsage{
		Provider:     r.client.Provider(),
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Images:       &images,
		Operation:    op,
	}
	if usage.Model == "" {
		usage.Model = r.client.Model()
	}
	if !resp.UsageReported {
		usage.InputTokens = r.opts.Estimator.Estimate(systemPrompt + "\n" + prompt)
		usage.OutputTokens = r.opts.Estimator.Estimate(resp.Text)
	}
	r.logger.Info("Vision call finished.",
		zap.String("operation", op),
		zap.String("model", usage.Model),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Bool("estimated", !resp.UsageReported))
	return resp, usage, nil
}

// dimensions reads the PNG header. Zero means unknown.
func dimensions(screenshot string) (int64, int64) {
	raw, err := base64.StdEncoding.DecodeString(screenshot)
	if err != nil {
		return 0, 0
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0
	}
	return int64(cfg.Width), int64(cfg.Height)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
