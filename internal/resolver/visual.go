package resolver

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/cost"
	"github.com/xkilldash9x/webprobe/internal/locator"
)

// VisionSource hands out the vision resolver and a screenshot from the most
// preferred capture backend.
type VisionSource interface {
	Vision() (schemas.VisionResolver, bool)
	CaptureScreenshot(ctx context.Context) (string, schemas.BackendKind, error)
}

// Visual resolves locators by asking the vision model for coordinates.
type Visual struct {
	source  VisionSource
	tracker *cost.Tracker
	// budget is the spend limit in USD; zero means unlimited.
	budget float64
	logger *zap.Logger
}

// NewVisual creates a visual resolver.
func NewVisual(source VisionSource, tracker *cost.Tracker, budgetUSD float64, logger *zap.Logger) *Visual {
	return &Visual{source: source, tracker: tracker, budget: budgetUSD, logger: logger.Named("visual")}
}

// Configured reports whether a vision resolver is connected.
func (v *Visual) Configured() bool {
	_, ok := v.source.Vision()
	return ok
}

// OverBudget reports whether tracked spend has reached the configured budget.
func (v *Visual) OverBudget() bool {
	return v.budget > 0 && v.tracker.TotalCost() >= v.budget
}

// Resolve captures a screenshot and asks the model to find the element.
// It returns (nil, nil) when the model reports no match.
func (v *Visual) Resolve(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	vision, ok := v.source.Vision()
	if !ok {
		return nil, nil
	}
	if v.OverBudget() {
		v.logger.Warn("Vision budget reached; skipping visual resolution.",
			zap.Float64("budget_usd", v.budget),
			zap.Float64("spent_usd", v.tracker.TotalCost()),
			zap.Stringer("locator", loc))
		return nil, nil
	}

	screenshot, kind, err := v.source.CaptureScreenshot(ctx)
	if err != nil {
		return nil, err
	}
	description := locator.Describe(loc)
	res, err := vision.FindElement(ctx, schemas.FindElementRequest{Screenshot: screenshot, Description: description})
	if err != nil {
		return nil, schemas.NewBackendError(schemas.BackendVision, "findElement", err)
	}
	v.track(vision, res.Usage)

	if res.NotFound || res.Coordinates == nil {
		v.logger.Debug("Vision model did not locate element.",
			zap.String("description", description),
			zap.String("reasoning", res.Reasoning),
			zap.String("alternative", res.Alternative))
		return nil, nil
	}

	p := *res.Coordinates
	v.logger.Debug("Vision model located element.",
		zap.String("description", description),
		zap.Float64("x", p.X), zap.Float64("y", p.Y),
		zap.Float64("confidence", res.Confidence),
		zap.Stringer("capture", kind))

	return &schemas.ElementHandle{
		ID:          "vlm-" + uuid.NewString(),
		Role:        "",
		Name:        description,
		BoundingBox: schemas.PointBox(p),
		Source:      schemas.SourceVLM,
		Confidence:  res.Confidence,
	}, nil
}

func (v *Visual) track(vision schemas.VisionResolver, u schemas.TokenUsage) {
	if u.Provider == "" {
		u.Provider = vision.Provider()
	}
	if u.Operation == "" {
		u.Operation = "findElement"
	}
	v.tracker.Track(u)
}
