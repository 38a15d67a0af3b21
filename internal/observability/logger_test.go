// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/webprobe/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "webprobe",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))
		GetLogger().Named("engine").Info("Connected.")
		Sync()

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "webprobe.engine.")
		assert.Contains(t, out, "Connected.")
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, zapcore.AddSync(&buf))
		GetLogger().Warn("Budget reached.", zap.String("provider", "anthropic"))
		GetLogger().Debug("filtered out")
		Sync()

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1, "debug is below the configured level")
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "anthropic", entry["provider"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, zapcore.AddSync(&buf))
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("writes a rotated log file", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		path := filepath.Join(t.TempDir(), "webprobe.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
		GetLogger().Debug("to file", zap.Int("refs", 3))
		Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry), "file output is always JSON")
		assert.Equal(t, "to file", entry["msg"])
	})

	t.Run("initializes only once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		var first, second bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, zapcore.AddSync(&second))
		GetLogger().Info("hello")
		Sync()
		assert.Contains(t, first.String(), `"logger":"first"`)
		assert.Empty(t, second.String())
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}
