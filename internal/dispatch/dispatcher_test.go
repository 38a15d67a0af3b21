package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/capability"
	"github.com/xkilldash9x/webprobe/internal/locator"
	"github.com/xkilldash9x/webprobe/internal/mocks"
)

// stubResolver answers from a fixed table keyed by the canonical locator.
type stubResolver struct {
	handles map[schemas.Locator]*schemas.ElementHandle
	err     error
}

func (s *stubResolver) Resolve(_ context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.handles[loc], nil
}

type fixedCost float64

func (f fixedCost) TotalCost() float64 { return float64(f) }

var (
	saveLoc   = locator.Normalize("#save")
	domHandle = &schemas.ElementHandle{
		ID: "n12", Role: "button", Name: "Save", Source: schemas.SourceDOM,
		BoundingBox: &schemas.BoundingBox{X: 10, Y: 20, Width: 100, Height: 40},
	}
	vlmHandle = &schemas.ElementHandle{
		ID: "vlm-1", Source: schemas.SourceVLM, BoundingBox: schemas.PointBox(schemas.Point{X: 300, Y: 200}),
	}
)

type harness struct {
	structural *mocks.MockStructuralBackend
	bridge     *mocks.MockPointerBackend
	native     *mocks.MockPointerBackend
	registry   *capability.Registry
	resolver   *stubResolver
}

func newHarness(available ...schemas.BackendKind) *harness {
	h := &harness{
		structural: new(mocks.MockStructuralBackend),
		bridge:     new(mocks.MockPointerBackend),
		native:     new(mocks.MockPointerBackend),
		resolver:   &stubResolver{handles: map[schemas.Locator]*schemas.ElementHandle{}},
	}
	h.registry = capability.NewRegistry(capability.Backends{Structural: h.structural, Bridge: h.bridge, Native: h.native})
	for _, k := range available {
		h.registry.MarkAvailable(k)
	}
	return h
}

func (h *harness) dispatcher(t *testing.T, verify bool, platform string) *Dispatcher {
	return New(h.resolver, h.registry, fixedCost(0.0258), Options{VerifyBeforeAction: verify, Platform: platform}, zaptest.NewLogger(t))
}

func assertComplete(t *testing.T, res schemas.ActionResult) {
	t.Helper()
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
	assert.Contains(t, []schemas.ActionStatus{schemas.StatusSuccess, schemas.StatusVLMFallback, schemas.StatusNotFound, schemas.StatusFailed}, res.Status)
	if res.Status == schemas.StatusFailed {
		assert.NotEmpty(t, res.Error)
	}
	if res.Status == schemas.StatusVLMFallback {
		assert.True(t, res.UsedVLM)
	}
}

func TestPerform_NotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(schemas.BackendStructural)
	res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})

	assertComplete(t, res)
	assert.Equal(t, schemas.StatusNotFound, res.Status)
	assert.False(t, res.UsedVLM)
	assert.Nil(t, res.VLMCostUSD)
	assert.Equal(t, schemas.ActionClick, res.Action)
}

func TestPerform_ResolutionErrorIsFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.resolver.err = schemas.Unavailable(schemas.BackendStructural, "not connected")
	res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})

	assertComplete(t, res)
	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "backend unavailable")
}

func TestPerform_PointerPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("bridge wins over native", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendOSBridge, schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.bridge.On("Click", ctx, schemas.Point{X: 60, Y: 40}, schemas.ButtonLeft, 1).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assertComplete(t, res)
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		assert.Equal(t, schemas.BackendOSBridge, res.Backend)
		h.native.AssertNotCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		h.structural.AssertNotCalled(t, "Act", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("native when bridge is absent", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.native.On("MoveTo", ctx, schemas.Point{X: 60, Y: 40}).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionHover, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		assert.Equal(t, schemas.BackendNative, res.Backend)
	})

	t.Run("structural fallback acts on the element", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural)
		h.resolver.handles[saveLoc] = domHandle
		h.structural.On("Act", ctx, *domHandle, schemas.ActionClick, schemas.ActionParams{Button: schemas.ButtonLeft, ClickCount: 1}).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		assert.Equal(t, schemas.BackendStructural, res.Backend)
	})

	t.Run("boxless dom handle uses structural even with a pointer backend", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendNative)
		boxless := schemas.ElementHandle{ID: "n3", Source: schemas.SourceDOM}
		h.resolver.handles[saveLoc] = &boxless
		h.structural.On("Act", ctx, boxless, schemas.ActionHover, schemas.ActionParams{}).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionHover, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		h.native.AssertNotCalled(t, "MoveTo", mock.Anything, mock.Anything)
	})
}

func TestPerform_VLMHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("vlm fallback reports cost", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendNative)
		h.resolver.handles[saveLoc] = vlmHandle
		h.native.On("Click", ctx, schemas.Point{X: 300, Y: 200}, schemas.ButtonLeft, 1).Return(nil).Once()

		res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assertComplete(t, res)
		assert.Equal(t, schemas.StatusVLMFallback, res.Status)
		require.NotNil(t, res.VLMCostUSD)
		assert.InDelta(t, 0.0258, *res.VLMCostUSD, 1e-12)
		h.structural.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("coordinate-only handle without pixel backend fails explicitly", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural)
		h.resolver.handles[saveLoc] = vlmHandle

		res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assertComplete(t, res)
		assert.Equal(t, schemas.StatusFailed, res.Status)
		assert.True(t, res.UsedVLM)
		assert.Contains(t, res.Error, "backend unavailable")
		h.structural.AssertNotCalled(t, "Act", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPerform_Verification(t *testing.T) {
	ctx := context.Background()

	t.Run("stale reference is not found", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.structural.On("Verify", ctx, *domHandle).Return(schemas.ElementHandle{}, schemas.ErrStaleReference).Once()

		res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assertComplete(t, res)
		assert.Equal(t, schemas.StatusNotFound, res.Status)
		assert.Contains(t, res.Error, "stale reference")
		h.native.AssertNotCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refreshed box is used", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural, schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		moved := domHandle.WithBox(&schemas.BoundingBox{X: 0, Y: 0, Width: 10, Height: 10})
		h.structural.On("Verify", ctx, *domHandle).Return(moved, nil).Once()
		h.native.On("Click", ctx, schemas.Point{X: 5, Y: 5}, schemas.ButtonLeft, 1).Return(nil).Once()

		res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
	})

	t.Run("verify failure is failed", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural)
		h.resolver.handles[saveLoc] = domHandle
		h.structural.On("Verify", ctx, *domHandle).Return(schemas.ElementHandle{}, errors.New("session closed")).Once()

		res := h.dispatcher(t, true, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusFailed, res.Status)
		assert.Contains(t, res.Error, "session closed")
	})
}

func TestPerform_CompositeActions(t *testing.T) {
	ctx := context.Background()
	center := schemas.Point{X: 60, Y: 40}

	t.Run("double and right click are click parameterizations", func(t *testing.T) {
		h := newHarness(schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.native.On("Click", ctx, center, schemas.ButtonLeft, 2).Return(nil).Once()
		h.native.On("Click", ctx, center, schemas.ButtonRight, 1).Return(nil).Once()
		d := h.dispatcher(t, false, "linux")

		assert.Equal(t, schemas.StatusSuccess, d.Perform(ctx, schemas.ActionDoubleClick, saveLoc, schemas.ActionParams{}).Status)
		assert.Equal(t, schemas.StatusSuccess, d.Perform(ctx, schemas.ActionRightClick, saveLoc, schemas.ActionParams{}).Status)
		h.native.AssertExpectations(t)
	})

	t.Run("fill clears then types", func(t *testing.T) {
		h := newHarness(schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		var order []string
		h.native.On("Click", ctx, center, schemas.ButtonLeft, 1).Return(nil).Run(func(mock.Arguments) { order = append(order, "click") })
		h.native.On("Press", ctx, mock.Anything).Return(nil).Run(func(a mock.Arguments) { order = append(order, "press "+a.String(1)) })
		h.native.On("Type", ctx, "hello").Return(nil).Run(func(mock.Arguments) { order = append(order, "type") })

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionFill, saveLoc, schemas.ActionParams{Text: "hello"})
		require.Equal(t, schemas.StatusSuccess, res.Status)
		assert.Equal(t, []string{"click", "press Control+a", "press Delete", "type"}, order)
	})

	t.Run("clear uses Meta on darwin", func(t *testing.T) {
		h := newHarness(schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.native.On("Click", ctx, center, schemas.ButtonLeft, 1).Return(nil)
		h.native.On("Press", ctx, "Meta+a").Return(nil).Once()
		h.native.On("Press", ctx, "Delete").Return(nil).Once()

		res := h.dispatcher(t, false, "darwin").Perform(ctx, schemas.ActionClear, saveLoc, schemas.ActionParams{})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		h.native.AssertExpectations(t)
	})

	t.Run("type with submit presses Enter last", func(t *testing.T) {
		h := newHarness(schemas.BackendStructural)
		h.resolver.handles[saveLoc] = domHandle
		h.structural.On("Act", ctx, *domHandle, schemas.ActionFocus, schemas.ActionParams{}).Return(nil).Once()
		h.structural.On("Act", ctx, *domHandle, schemas.ActionType, schemas.ActionParams{Text: "query"}).Return(nil).Once()
		h.structural.On("Act", ctx, *domHandle, schemas.ActionPress, schemas.ActionParams{Key: "Enter"}).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionTypeSubmit, saveLoc, schemas.ActionParams{Text: "query"})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
		h.structural.AssertExpectations(t)
	})

	t.Run("drag resolves its target", func(t *testing.T) {
		h := newHarness(schemas.BackendOSBridge)
		target := locator.Normalize("#trash")
		h.resolver.handles[saveLoc] = domHandle
		h.resolver.handles[target] = vlmHandle
		h.bridge.On("Drag", ctx, center, schemas.Point{X: 300, Y: 200}).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionDrag, saveLoc, schemas.ActionParams{Target: &target})
		assertComplete(t, res)
		assert.Equal(t, schemas.StatusVLMFallback, res.Status, "a vlm-resolved drop target counts as vision use")
	})

	t.Run("drag target not found", func(t *testing.T) {
		h := newHarness(schemas.BackendOSBridge)
		target := locator.Normalize("#nowhere")
		h.resolver.handles[saveLoc] = domHandle

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionDrag, saveLoc, schemas.ActionParams{Target: &target})
		assert.Equal(t, schemas.StatusNotFound, res.Status)
	})

	t.Run("scroll at element center", func(t *testing.T) {
		h := newHarness(schemas.BackendNative)
		h.resolver.handles[saveLoc] = domHandle
		h.native.On("Scroll", ctx, center, 0.0, 240.0).Return(nil).Once()

		res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionScroll, saveLoc, schemas.ActionParams{DeltaY: 240})
		assert.Equal(t, schemas.StatusSuccess, res.Status)
	})
}

func TestPerform_BackendFailureIsCaptured(t *testing.T) {
	ctx := context.Background()
	h := newHarness(schemas.BackendNative)
	h.resolver.handles[saveLoc] = domHandle
	h.native.On("Click", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("input device lost"))

	res := h.dispatcher(t, false, "linux").Perform(ctx, schemas.ActionClick, saveLoc, schemas.ActionParams{})
	assertComplete(t, res)
	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "native backend click: input device lost")
}

func TestPerform_PressWithoutKey(t *testing.T) {
	h := newHarness(schemas.BackendNative)
	h.resolver.handles[saveLoc] = domHandle
	res := h.dispatcher(t, false, "linux").Perform(context.Background(), schemas.ActionPress, saveLoc, schemas.ActionParams{})
	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Equal(t, "press requires a key", res.Error)
}
