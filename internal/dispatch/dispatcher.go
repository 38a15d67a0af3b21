// Package dispatch executes user-facing actions against resolved elements
// through the most precise backend available.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/observability"
)

// Resolver resolves a canonical locator, returning (nil, nil) when absent.
type Resolver interface {
	Resolve(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error)
}

// Backends exposes the connected backends in precedence order.
type Backends interface {
	Structural() (schemas.StructuralBackend, error)
	Pointer() (schemas.PointerBackend, schemas.BackendKind, bool)
}

// CostReader reports the tracked vision spend.
type CostReader interface {
	TotalCost() float64
}

// Options tunes a Dispatcher.
type Options struct {
	// VerifyBeforeAction re-checks dom handles against the live page before acting.
	VerifyBeforeAction bool
	// Platform selects the select-all chord; empty means runtime.GOOS.
	Platform string
}

// Dispatcher turns (action, locator, params) into exactly one ActionResult.
// It never returns an error: every failure is reported in the result.
type Dispatcher struct {
	resolver Resolver
	backends Backends
	costs    CostReader
	opts     Options
	logger   *zap.Logger
}

// New creates a Dispatcher.
func New(resolver Resolver, backends Backends, costs CostReader, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}
	return &Dispatcher{resolver: resolver, backends: backends, costs: costs, opts: opts, logger: logger.Named("dispatch")}
}

// SelectAllKey is the chord that selects the contents of a focused field.
func (d *Dispatcher) SelectAllKey() string {
	if d.opts.Platform == "darwin" {
		return "Meta+a"
	}
	return "Control+a"
}

// Perform resolves loc and executes action on it.
func (d *Dispatcher) Perform(ctx context.Context, action schemas.ActionKind, loc schemas.Locator, params schemas.ActionParams) schemas.ActionResult {
	start := time.Now()
	res := d.perform(ctx, action, loc, params)
	res.Action = action
	res.DurationMs = time.Since(start).Milliseconds()
	if res.Status == schemas.StatusFailed && res.Error == "" {
		res.Error = "action failed"
	}

	observability.ActionsTotal.WithLabelValues(string(action), string(res.Status)).Inc()
	observability.ActionDuration.WithLabelValues(string(action)).Observe(float64(res.DurationMs))

	fields := []zap.Field{
		zap.String("action", string(action)),
		zap.Stringer("locator", loc),
		zap.String("status", string(res.Status)),
		zap.Int64("duration_ms", res.DurationMs),
		zap.Bool("used_vlm", res.UsedVLM),
	}
	if res.Status == schemas.StatusFailed {
		d.logger.Warn("Action failed.", append(fields, zap.String("error", res.Error))...)
	} else {
		d.logger.Debug("Action finished.", fields...)
	}
	return res
}

func (d *Dispatcher) perform(ctx context.Context, action schemas.ActionKind, loc schemas.Locator, params schemas.ActionParams) schemas.ActionResult {
	h, res, ok := d.resolve(ctx, loc)
	if !ok {
		return res
	}
	usedVLM := h.Source == schemas.SourceVLM

	if action == schemas.ActionDrag {
		if params.Target == nil {
			return failed(usedVLM, errors.New("drag requires a target locator"))
		}
		to, res, ok := d.resolve(ctx, *params.Target)
		if !ok {
			res.UsedVLM = res.UsedVLM || usedVLM
			return res
		}
		usedVLM = usedVLM || to.Source == schemas.SourceVLM
		params.To = &to
	}

	act, err := d.pick(h, params.To)
	if err != nil {
		return failed(usedVLM, err)
	}
	if err := d.run(ctx, act, action, h, params); err != nil {
		return failed(usedVLM, err)
	}

	res = schemas.ActionResult{Status: schemas.StatusSuccess, UsedVLM: usedVLM, Backend: act.kind()}
	if usedVLM {
		res.Status = schemas.StatusVLMFallback
		total := d.costs.TotalCost()
		res.VLMCostUSD = &total
	}
	return res
}

// resolve finds and, for dom handles, re-verifies the element. When ok is
// false the returned result is final.
func (d *Dispatcher) resolve(ctx context.Context, loc schemas.Locator) (schemas.ElementHandle, schemas.ActionResult, bool) {
	h, err := d.resolver.Resolve(ctx, loc)
	if err != nil {
		return schemas.ElementHandle{}, failed(false, err), false
	}
	if h == nil {
		return schemas.ElementHandle{}, schemas.ActionResult{
			Status: schemas.StatusNotFound,
			Error:  fmt.Sprintf("%s: %v", loc, schemas.ErrNotFound),
		}, false
	}
	if h.Source != schemas.SourceDOM || !d.opts.VerifyBeforeAction {
		return *h, schemas.ActionResult{}, true
	}

	structural, err := d.backends.Structural()
	if err != nil {
		return schemas.ElementHandle{}, failed(false, err), false
	}
	verified, err := structural.Verify(ctx, *h)
	if errors.Is(err, schemas.ErrStaleReference) {
		return schemas.ElementHandle{}, schemas.ActionResult{
			Status: schemas.StatusNotFound,
			Error:  fmt.Sprintf("%s: %v", loc, schemas.ErrStaleReference),
		}, false
	}
	if err != nil {
		return schemas.ElementHandle{}, failed(false, schemas.NewBackendError(schemas.BackendStructural, "verify", err)), false
	}
	return verified, schemas.ActionResult{}, true
}

// pick prefers a pixel backend whenever the handles carry boxes, and falls
// back to element-addressed structural actions for dom handles.
func (d *Dispatcher) pick(h schemas.ElementHandle, to *schemas.ElementHandle) (actor, error) {
	hasBoxes := h.BoundingBox != nil && (to == nil || to.BoundingBox != nil)
	if p, kind, ok := d.backends.Pointer(); ok && hasBoxes {
		return pointerActor{backend: p, k: kind}, nil
	}

	coordinateOnly := h.Source == schemas.SourceVLM || (to != nil && to.Source == schemas.SourceVLM)
	if coordinateOnly {
		return nil, schemas.Unavailable("pointer", "required for a coordinate-only element")
	}
	structural, err := d.backends.Structural()
	if err != nil {
		return nil, err
	}
	return structuralActor{backend: structural}, nil
}

func (d *Dispatcher) run(ctx context.Context, a actor, action schemas.ActionKind, h schemas.ElementHandle, p schemas.ActionParams) error {
	wrap := func(op string, err error) error {
		if err == nil {
			return nil
		}
		var be *schemas.BackendError
		if errors.As(err, &be) || errors.Is(err, schemas.ErrBackendUnavailable) {
			return err
		}
		return schemas.NewBackendError(a.kind(), op, err)
	}

	switch action {
	case schemas.ActionClick:
		button := p.Button
		if button == "" || button == schemas.ButtonNone {
			button = schemas.ButtonLeft
		}
		count := p.ClickCount
		if count < 1 {
			count = 1
		}
		return wrap("click", a.click(ctx, h, button, count))
	case schemas.ActionDoubleClick:
		return wrap("click", a.click(ctx, h, schemas.ButtonLeft, 2))
	case schemas.ActionRightClick:
		return wrap("click", a.click(ctx, h, schemas.ButtonRight, 1))
	case schemas.ActionHover:
		return wrap("hover", a.hover(ctx, h))
	case schemas.ActionType:
		if err := a.focus(ctx, h); err != nil {
			return wrap("focus", err)
		}
		return wrap("type", a.typeText(ctx, h, p.Text))
	case schemas.ActionTypeSubmit:
		if err := d.run(ctx, a, schemas.ActionType, h, p); err != nil {
			return err
		}
		return wrap("press", a.press(ctx, h, "Enter"))
	case schemas.ActionClear:
		if err := a.click(ctx, h, schemas.ButtonLeft, 1); err != nil {
			return wrap("click", err)
		}
		if err := a.press(ctx, h, d.SelectAllKey()); err != nil {
			return wrap("press", err)
		}
		return wrap("press", a.press(ctx, h, "Delete"))
	case schemas.ActionFill:
		if err := d.run(ctx, a, schemas.ActionClear, h, p); err != nil {
			return err
		}
		if p.Text == "" {
			return nil
		}
		return wrap("type", a.typeText(ctx, h, p.Text))
	case schemas.ActionPress:
		if p.Key == "" {
			return errors.New("press requires a key")
		}
		if err := a.focus(ctx, h); err != nil {
			return wrap("focus", err)
		}
		return wrap("press", a.press(ctx, h, p.Key))
	case schemas.ActionScroll:
		return wrap("scroll", a.scroll(ctx, h, p.DeltaX, p.DeltaY))
	case schemas.ActionDrag:
		if p.To == nil {
			return errors.New("drag requires a resolved target")
		}
		return wrap("drag", a.drag(ctx, h, *p.To))
	case schemas.ActionFocus:
		return wrap("focus", a.focus(ctx, h))
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func failed(usedVLM bool, err error) schemas.ActionResult {
	msg := "action failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return schemas.ActionResult{Status: schemas.StatusFailed, UsedVLM: usedVLM, Error: msg}
}
