// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
)

// ErrNoClient is returned for the agent provider, which answers vision
// requests outside this process.
var ErrNoClient = errors.New("provider has no model client")

// NewClient creates the client for cfg.Provider. The provider must already
// be resolved: auto is rejected.
func NewClient(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (Client, error) {
	var (
		client Client
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, logger)
	case config.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg, logger)
	case config.ProviderAgent:
		return nil, ErrNoClient
	default:
		return nil, fmt.Errorf("unknown or unsupported vision provider %q. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
