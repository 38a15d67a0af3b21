// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "webprobe", cfg.Logger().ServiceName)
	assert.Equal(t, "hybrid", cfg.Engine().Mode)
	assert.Equal(t, 10*time.Second, cfg.Engine().WaitTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine().WaitInterval)
	assert.True(t, cfg.Engine().VerifyBeforeAction)
	assert.Equal(t, DriverChromedp, cfg.Browser().Driver)
	assert.Equal(t, "http://127.0.0.1:9222", cfg.Browser().Endpoint)
	assert.False(t, cfg.Bridge().Enabled)
	assert.Equal(t, 20, cfg.Native().MoveSteps)
	assert.Equal(t, ProviderAuto, cfg.Vision().Provider)
	assert.Equal(t, 1024, cfg.Vision().MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad mode", func(c *Config) { c.EngineCfg.Mode = "fuzzy" }, "engine.mode"},
		{"zero wait timeout", func(c *Config) { c.EngineCfg.WaitTimeout = 0 }, "engine.wait_timeout must be positive"},
		{"zero wait interval", func(c *Config) { c.EngineCfg.WaitInterval = 0 }, "engine.wait_interval must be positive"},
		{"unknown driver", func(c *Config) { c.BrowserCfg.Driver = "selenium" }, "browser.driver"},
		{"missing endpoint", func(c *Config) { c.BrowserCfg.Endpoint = "" }, "browser.endpoint is required"},
		{"bridge without command", func(c *Config) { c.BridgeCfg.Enabled = true }, "bridge.command is required"},
		{"no move steps", func(c *Config) { c.NativeCfg.MoveSteps = 0 }, "native.move_steps"},
		{"unknown provider", func(c *Config) { c.VisionCfg.Provider = "llama" }, "vision.provider"},
		{"negative budget", func(c *Config) { c.VisionCfg.MaxCostUSD = -1 }, "vision.max_cost_usd"},
		{"negative price", func(c *Config) {
			c.PricingCfg = map[string]schemas.Pricing{"openai": {ImagePrice: -0.1}}
		}, "pricing.openai"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
engine:
  mode: deterministic
  wait_timeout: 2s
browser:
  driver: rod
  endpoint: http://127.0.0.1:9333
vision:
  provider: openai
  max_cost_usd: 0.5
pricing:
  openai:
    input_token_price: 0.001
    output_token_price: 0.002
    image_price: 0.0005
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "deterministic", cfg.Engine().Mode)
		assert.Equal(t, 2*time.Second, cfg.Engine().WaitTimeout)
		assert.Equal(t, 100*time.Millisecond, cfg.Engine().WaitInterval, "unset keys keep their default")
		assert.Equal(t, DriverRod, cfg.Browser().Driver)
		assert.Equal(t, 0.5, cfg.Vision().MaxCostUSD)
		assert.Equal(t, schemas.Pricing{InputTokenPrice: 0.001, OutputTokenPrice: 0.002, ImagePrice: 0.0005}, cfg.Pricing()["openai"])
	})

	t.Run("secret from environment", func(t *testing.T) {
		t.Setenv("WEBPROBE_VISION_API_KEY", "sk-test")
		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.Vision().APIKey)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("engine.mode", "sometimes")
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetEngineMode("visual")
	cfg.SetBrowserEndpoint("ws://127.0.0.1:9229/devtools/browser/x")
	cfg.SetBrowserDriver(DriverPlaywright)
	cfg.SetVisionProvider(ProviderGemini)
	cfg.SetVisionAPIKey("k")

	assert.Equal(t, "visual", cfg.Engine().Mode)
	assert.Equal(t, "ws://127.0.0.1:9229/devtools/browser/x", cfg.Browser().Endpoint)
	assert.Equal(t, DriverPlaywright, cfg.Browser().Driver)
	assert.Equal(t, ProviderGemini, cfg.Vision().Provider)
	assert.Equal(t, "k", cfg.Vision().APIKey)
}
