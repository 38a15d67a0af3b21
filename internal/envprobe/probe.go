// Package envprobe resolves the vision provider and its API key from the
// environment once, at startup. Nothing else in the module reads these
// variables.
package envprobe

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/xkilldash9x/webprobe/internal/config"
)

// Environment variables consulted by the probe.
const (
	EnvAgentMode    = "WEBPROBE_AGENT_MODE"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
)

// keyVars lists, per provider, the variables that may hold its key, in the
// order auto-detection tries them.
var keyVars = []struct {
	provider string
	vars     []string
}{
	{config.ProviderAnthropic, []string{EnvAnthropicKey}},
	{config.ProviderOpenAI, []string{EnvOpenAIKey}},
	{config.ProviderGemini, []string{EnvGeminiKey, EnvGoogleKey}},
}

// Result is the resolved provider.
type Result struct {
	Provider string
	APIKey   string
	// Source names what decided the provider: "config", an environment
	// variable, or "default".
	Source string
}

// Probe reads the environment through lookup.
type Probe struct {
	lookup func(string) (string, bool)
}

// New probes the process environment.
func New() *Probe { return &Probe{lookup: os.LookupEnv} }

// NewWithLookup probes a custom environment.
func NewWithLookup(lookup func(string) (string, bool)) *Probe { return &Probe{lookup: lookup} }

// LoadDotEnv loads each file that exists into the process environment.
// Variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (p *Probe) get(name string) string {
	v, ok := p.lookup(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (p *Probe) keyFor(provider string) string {
	for _, kv := range keyVars {
		if kv.provider != provider {
			continue
		}
		for _, name := range kv.vars {
			if v := p.get(name); v != "" {
				return v
			}
		}
	}
	return ""
}

// Resolve picks the provider. An explicit provider in cfg wins; otherwise
// agent mode when WEBPROBE_AGENT_MODE is truthy; otherwise the first
// provider with a key in the environment; otherwise agent.
func (p *Probe) Resolve(cfg config.VisionConfig) Result {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != "" && provider != config.ProviderAuto {
		key := cfg.APIKey
		if key == "" {
			key = p.keyFor(provider)
		}
		return Result{Provider: provider, APIKey: key, Source: "config"}
	}

	if on, err := strconv.ParseBool(p.get(EnvAgentMode)); err == nil && on {
		return Result{Provider: config.ProviderAgent, Source: EnvAgentMode}
	}

	for _, kv := range keyVars {
		for _, name := range kv.vars {
			if v := p.get(name); v != "" {
				key := cfg.APIKey
				if key == "" {
					key = v
				}
				return Result{Provider: kv.provider, APIKey: key, Source: name}
			}
		}
	}
	return Result{Provider: config.ProviderAgent, Source: "default"}
}

// Apply returns cfg with the resolved provider and key filled in.
func (p *Probe) Apply(cfg config.VisionConfig) (config.VisionConfig, Result) {
	res := p.Resolve(cfg)
	cfg.Provider = res.Provider
	cfg.APIKey = res.APIKey
	return cfg, res
}
