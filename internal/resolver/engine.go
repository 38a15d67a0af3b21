package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/observability"
)

// Engine orchestrates the deterministic and visual resolvers under a fixed mode.
type Engine struct {
	mode          schemas.Mode
	deterministic *Deterministic
	visual        *Visual
	logger        *zap.Logger
}

// NewEngine creates the hybrid resolution engine. visual may be nil.
func NewEngine(mode schemas.Mode, deterministic *Deterministic, visual *Visual, logger *zap.Logger) *Engine {
	return &Engine{mode: mode, deterministic: deterministic, visual: visual, logger: logger.Named("resolver")}
}

// Mode returns the engine's fixed mode.
func (e *Engine) Mode() schemas.Mode { return e.mode }

// Resolve returns the first handle produced by the strategies the mode
// allows, or (nil, nil). Errors are connectivity or backend failures and are
// never folded into "absent".
func (e *Engine) Resolve(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	if e.mode != schemas.ModeVisual {
		h, err := e.deterministic.Resolve(ctx, loc)
		if err != nil {
			return nil, err
		}
		if h != nil {
			observability.ResolutionsTotal.WithLabelValues(string(schemas.SourceDOM)).Inc()
			return h, nil
		}
		// Refs are never re-resolved visually: a missing ref is not found.
		if loc.Strategy == schemas.StrategyReference {
			observability.ResolutionsTotal.WithLabelValues("none").Inc()
			return nil, nil
		}
	}

	// A ref only means something against the snapshot that minted it, so
	// visual mode also leaves REFERENCE locators unresolved.
	if e.mode != schemas.ModeDeterministic && e.visual != nil && loc.Strategy != schemas.StrategyReference {
		h, err := e.visual.Resolve(ctx, loc)
		if err != nil {
			return nil, err
		}
		if h != nil {
			observability.ResolutionsTotal.WithLabelValues(string(schemas.SourceVLM)).Inc()
			return h, nil
		}
	}

	e.logger.Debug("Locator did not resolve.", zap.Stringer("locator", loc), zap.Stringer("mode", e.mode))
	observability.ResolutionsTotal.WithLabelValues("none").Inc()
	return nil, nil
}

// Count delegates to the structural backend. Visual mode cannot count.
func (e *Engine) Count(ctx context.Context, loc schemas.Locator) (int, error) {
	if e.mode == schemas.ModeVisual {
		return 0, schemas.Unavailable(schemas.BackendStructural, "not used in visual mode")
	}
	return e.deterministic.Count(ctx, loc)
}
