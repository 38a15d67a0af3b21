package envprobe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webprobe/internal/config"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestProbe_Resolve(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.VisionConfig
		env  map[string]string
		want Result
	}{
		{
			name: "explicit provider wins over agent mode",
			cfg:  config.VisionConfig{Provider: "OpenAI"},
			env:  map[string]string{EnvAgentMode: "1", EnvOpenAIKey: "sk-1", EnvAnthropicKey: "ak"},
			want: Result{Provider: "openai", APIKey: "sk-1", Source: "config"},
		},
		{
			name: "explicit key is kept",
			cfg:  config.VisionConfig{Provider: "gemini", APIKey: "cfg-key"},
			env:  map[string]string{EnvGeminiKey: "env-key"},
			want: Result{Provider: "gemini", APIKey: "cfg-key", Source: "config"},
		},
		{
			name: "google key serves gemini",
			cfg:  config.VisionConfig{Provider: "gemini"},
			env:  map[string]string{EnvGoogleKey: "g-key"},
			want: Result{Provider: "gemini", APIKey: "g-key", Source: "config"},
		},
		{
			name: "agent mode",
			cfg:  config.VisionConfig{Provider: "auto"},
			env:  map[string]string{EnvAgentMode: "true", EnvAnthropicKey: "ak"},
			want: Result{Provider: "agent", Source: EnvAgentMode},
		},
		{
			name: "falsy agent mode falls through",
			cfg:  config.VisionConfig{Provider: "auto"},
			env:  map[string]string{EnvAgentMode: "0", EnvAnthropicKey: "ak"},
			want: Result{Provider: "anthropic", APIKey: "ak", Source: EnvAnthropicKey},
		},
		{
			name: "key precedence",
			cfg:  config.VisionConfig{},
			env:  map[string]string{EnvOpenAIKey: "sk", EnvGeminiKey: "gk"},
			want: Result{Provider: "openai", APIKey: "sk", Source: EnvOpenAIKey},
		},
		{
			name: "blank keys are ignored",
			cfg:  config.VisionConfig{Provider: "auto"},
			env:  map[string]string{EnvAnthropicKey: "  ", EnvGoogleKey: "gk"},
			want: Result{Provider: "gemini", APIKey: "gk", Source: EnvGoogleKey},
		},
		{
			name: "nothing configured",
			cfg:  config.VisionConfig{Provider: "auto"},
			env:  map[string]string{},
			want: Result{Provider: "agent", Source: "default"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewWithLookup(env(tt.env)).Resolve(tt.cfg)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbe_Apply(t *testing.T) {
	cfg := config.VisionConfig{Provider: "auto", Model: "m"}
	out, res := NewWithLookup(env(map[string]string{EnvAnthropicKey: "ak"})).Apply(cfg)
	assert.Equal(t, "anthropic", out.Provider)
	assert.Equal(t, "ak", out.APIKey)
	assert.Equal(t, "m", out.Model)
	assert.Equal(t, EnvAnthropicKey, res.Source)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "WEBPROBE_TEST_DOTENV_KEY"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))

	res := New().Resolve(config.VisionConfig{Provider: "openai"})
	assert.Equal(t, "openai", res.Provider)
}
