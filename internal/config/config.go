// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// Commands depend on it rather than on *Config so tests can hand in fixtures.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Bridge() BridgeConfig
	Native() NativeConfig
	Vision() VisionConfig
	Pricing() map[string]schemas.Pricing
	Database() DatabaseConfig

	// Flag overrides.
	SetEngineMode(mode string)
	SetBrowserEndpoint(endpoint string)
	SetBrowserDriver(driver string)
	SetVisionProvider(provider string)
	SetVisionAPIKey(key string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig               `mapstructure:"logger" yaml:"logger"`
	EngineCfg   EngineConfig               `mapstructure:"engine" yaml:"engine"`
	BrowserCfg  BrowserConfig              `mapstructure:"browser" yaml:"browser"`
	BridgeCfg   BridgeConfig               `mapstructure:"bridge" yaml:"bridge"`
	NativeCfg   NativeConfig               `mapstructure:"native" yaml:"native"`
	VisionCfg   VisionConfig               `mapstructure:"vision" yaml:"vision"`
	PricingCfg  map[string]schemas.Pricing `mapstructure:"pricing" yaml:"pricing"`
	DatabaseCfg DatabaseConfig             `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig                { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig                { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig              { return c.BrowserCfg }
func (c *Config) Bridge() BridgeConfig                { return c.BridgeCfg }
func (c *Config) Native() NativeConfig                { return c.NativeCfg }
func (c *Config) Vision() VisionConfig                { return c.VisionCfg }
func (c *Config) Pricing() map[string]schemas.Pricing { return c.PricingCfg }
func (c *Config) Database() DatabaseConfig            { return c.DatabaseCfg }

func (c *Config) SetEngineMode(mode string)          { c.EngineCfg.Mode = mode }
func (c *Config) SetBrowserEndpoint(endpoint string) { c.BrowserCfg.Endpoint = endpoint }
func (c *Config) SetBrowserDriver(driver string)     { c.BrowserCfg.Driver = driver }
func (c *Config) SetVisionProvider(provider string)  { c.VisionCfg.Provider = provider }
func (c *Config) SetVisionAPIKey(key string)         { c.VisionCfg.APIKey = key }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes resolution and the wait policy.
type EngineConfig struct {
	Mode                    string        `mapstructure:"mode" yaml:"mode"`
	WaitTimeout             time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	WaitInterval            time.Duration `mapstructure:"wait_interval" yaml:"wait_interval"`
	VerifyBeforeAction      bool          `mapstructure:"verify_before_action" yaml:"verify_before_action"`
	SnapshotInteractiveOnly bool          `mapstructure:"snapshot_interactive_only" yaml:"snapshot_interactive_only"`
	SnapshotMaxDepth        int           `mapstructure:"snapshot_max_depth" yaml:"snapshot_max_depth"`
	SnapshotBoxes           bool          `mapstructure:"snapshot_boxes" yaml:"snapshot_boxes"`
}

// Structural backend drivers.
const (
	DriverChromedp   = "chromedp"
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// BrowserConfig points the structural backend at the app's DevTools endpoint.
type BrowserConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// TargetURL selects the first page target whose URL contains it.
	TargetURL         string        `mapstructure:"target_url" yaml:"target_url"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// BridgeConfig launches the OS automation helper process.
type BridgeConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Command      string        `mapstructure:"command" yaml:"command"`
	Args         []string      `mapstructure:"args" yaml:"args"`
	CallTimeout  time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
}

// NativeConfig tunes pixel-level input dispatched over CDP.
type NativeConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint defaults to browser.endpoint when empty.
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	MoveDuration time.Duration `mapstructure:"move_duration" yaml:"move_duration"`
	MoveSteps    int           `mapstructure:"move_steps" yaml:"move_steps"`
	ClickHold    time.Duration `mapstructure:"click_hold" yaml:"click_hold"`
	KeyDelay     time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
}

// Vision providers.
const (
	ProviderAuto      = "auto"
	ProviderAgent     = "agent"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// VisionConfig selects and tunes the vision model.
type VisionConfig struct {
	// Provider is auto, agent, anthropic, openai or gemini. Auto is resolved
	// once at startup from the environment.
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit   float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries  uint64        `mapstructure:"max_retries" yaml:"max_retries"`
	// MaxCostUSD stops visual resolution once reached. Zero is unlimited.
	MaxCostUSD    float64 `mapstructure:"max_cost_usd" yaml:"max_cost_usd"`
	TokenEncoding string  `mapstructure:"token_encoding" yaml:"token_encoding"`
}

// DatabaseConfig holds the cost ledger connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine --
	v.SetDefault("engine.mode", string(schemas.ModeHybrid))
	v.SetDefault("engine.wait_timeout", "10s")
	v.SetDefault("engine.wait_interval", "100ms")
	v.SetDefault("engine.verify_before_action", true)
	v.SetDefault("engine.snapshot_interactive_only", true)
	v.SetDefault("engine.snapshot_max_depth", -1)
	v.SetDefault("engine.snapshot_boxes", true)

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.endpoint", "http://127.0.0.1:9222")
	v.SetDefault("browser.target_url", "")
	v.SetDefault("browser.connect_timeout", "15s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")

	// -- Bridge --
	v.SetDefault("bridge.enabled", false)
	v.SetDefault("bridge.command", "")
	v.SetDefault("bridge.args", []string{})
	v.SetDefault("bridge.call_timeout", "5s")
	v.SetDefault("bridge.ready_timeout", "10s")

	// -- Native --
	v.SetDefault("native.enabled", true)
	v.SetDefault("native.endpoint", "")
	v.SetDefault("native.move_duration", "250ms")
	v.SetDefault("native.move_steps", 20)
	v.SetDefault("native.click_hold", "60ms")
	v.SetDefault("native.key_delay", "15ms")

	// -- Vision --
	v.SetDefault("vision.provider", ProviderAuto)
	v.SetDefault("vision.model", "")
	v.SetDefault("vision.endpoint", "")
	v.SetDefault("vision.timeout", "60s")
	v.SetDefault("vision.rate_limit", 1.0)
	v.SetDefault("vision.burst", 2)
	v.SetDefault("vision.max_tokens", 1024)
	v.SetDefault("vision.temperature", 0.0)
	v.SetDefault("vision.max_retries", 3)
	v.SetDefault("vision.max_cost_usd", 0.0)
	v.SetDefault("vision.token_encoding", "cl100k_base")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewDefaultConfig returns the configuration produced by the defaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are bound explicitly so they never need to appear in a file.
	_ = v.BindEnv("vision.api_key", "WEBPROBE_VISION_API_KEY")
	_ = v.BindEnv("database.url", "WEBPROBE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if _, err := schemas.ParseMode(c.EngineCfg.Mode); err != nil {
		return fmt.Errorf("engine.mode: %w", err)
	}
	if c.EngineCfg.WaitTimeout <= 0 {
		return fmt.Errorf("engine.wait_timeout must be positive")
	}
	if c.EngineCfg.WaitInterval <= 0 {
		return fmt.Errorf("engine.wait_interval must be positive")
	}
	switch strings.ToLower(c.BrowserCfg.Driver) {
	case DriverChromedp, DriverRod, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be one of chromedp, rod, playwright (got %q)", c.BrowserCfg.Driver)
	}
	if c.BrowserCfg.Endpoint == "" {
		return fmt.Errorf("browser.endpoint is required")
	}
	if c.BridgeCfg.Enabled && c.BridgeCfg.Command == "" {
		return fmt.Errorf("bridge.command is required when bridge.enabled is true")
	}
	if c.BridgeCfg.CallTimeout <= 0 {
		return fmt.Errorf("bridge.call_timeout must be positive")
	}
	if c.NativeCfg.MoveSteps < 1 {
		return fmt.Errorf("native.move_steps must be at least 1")
	}
	switch strings.ToLower(c.VisionCfg.Provider) {
	case "", ProviderAuto, ProviderAgent, ProviderAnthropic, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("vision.provider must be one of auto, agent, anthropic, openai, gemini (got %q)", c.VisionCfg.Provider)
	}
	if c.VisionCfg.RateLimit < 0 {
		return fmt.Errorf("vision.rate_limit must not be negative")
	}
	if c.VisionCfg.MaxCostUSD < 0 {
		return fmt.Errorf("vision.max_cost_usd must not be negative")
	}
	for provider, p := range c.PricingCfg {
		if p.InputTokenPrice < 0 || p.OutputTokenPrice < 0 || p.ImagePrice < 0 {
			return fmt.Errorf("pricing.%s: prices must not be negative", provider)
		}
	}
	return nil
}
