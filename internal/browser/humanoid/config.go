// internal/browser/humanoid/config.go
package humanoid

import (
	"math/rand"
	"time"

	"github.com/xkilldash9x/webprobe/internal/config"
)

// Config tunes pointer motion and typing cadence.
type Config struct {
	// MoveDuration is the time a full pointer move takes. Zero moves instantly.
	MoveDuration time.Duration
	// MoveSteps is the number of intermediate mouseMoved events per move.
	MoveSteps int
	// ClickHold is the pause between press and release.
	ClickHold time.Duration
	// KeyDelay is the pause between typed characters.
	KeyDelay time.Duration
	// PerlinAmplitude bounds the drift, in pixels, added to intermediate points.
	PerlinAmplitude float64
	// CurveSpread scales how far control points leave the straight line.
	CurveSpread float64
	Rng         *rand.Rand
}

// DefaultConfig returns a quick, lightly curved motion profile.
func DefaultConfig() Config {
	return Config{
		MoveDuration:    150 * time.Millisecond,
		MoveSteps:       20,
		ClickHold:       40 * time.Millisecond,
		KeyDelay:        15 * time.Millisecond,
		PerlinAmplitude: 1.5,
		CurveSpread:     0.15,
	}
}

// ConfigFromNative applies the native section over the defaults. Zero
// values in cfg keep the default.
func ConfigFromNative(cfg config.NativeConfig) Config {
	c := DefaultConfig()
	if cfg.MoveDuration > 0 {
		c.MoveDuration = cfg.MoveDuration
	}
	if cfg.MoveSteps > 0 {
		c.MoveSteps = cfg.MoveSteps
	}
	if cfg.ClickHold > 0 {
		c.ClickHold = cfg.ClickHold
	}
	if cfg.KeyDelay > 0 {
		c.KeyDelay = cfg.KeyDelay
	}
	return c
}
