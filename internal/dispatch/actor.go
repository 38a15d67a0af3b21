package dispatch

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// actor is the primitive surface composite actions are built from. Pointer
// backends act at the centre of the handle's box; the structural backend acts
// on the element itself.
type actor interface {
	kind() schemas.BackendKind
	click(ctx context.Context, h schemas.ElementHandle, button schemas.MouseButton, count int) error
	hover(ctx context.Context, h schemas.ElementHandle) error
	focus(ctx context.Context, h schemas.ElementHandle) error
	typeText(ctx context.Context, h schemas.ElementHandle, text string) error
	press(ctx context.Context, h schemas.ElementHandle, key string) error
	scroll(ctx context.Context, h schemas.ElementHandle, dx, dy float64) error
	drag(ctx context.Context, from, to schemas.ElementHandle) error
}

type pointerActor struct {
	backend schemas.PointerBackend
	k       schemas.BackendKind
}

func centerOf(h schemas.ElementHandle) (schemas.Point, error) {
	if h.BoundingBox == nil {
		return schemas.Point{}, fmt.Errorf("element %s has no bounding box", h.ID)
	}
	return h.BoundingBox.Center(), nil
}

func (a pointerActor) kind() schemas.BackendKind { return a.k }

func (a pointerActor) click(ctx context.Context, h schemas.ElementHandle, button schemas.MouseButton, count int) error {
	p, err := centerOf(h)
	if err != nil {
		return err
	}
	return a.backend.Click(ctx, p, button, count)
}

func (a pointerActor) hover(ctx context.Context, h schemas.ElementHandle) error {
	p, err := centerOf(h)
	if err != nil {
		return err
	}
	return a.backend.MoveTo(ctx, p)
}

func (a pointerActor) focus(ctx context.Context, h schemas.ElementHandle) error {
	return a.click(ctx, h, schemas.ButtonLeft, 1)
}

func (a pointerActor) typeText(ctx context.Context, _ schemas.ElementHandle, text string) error {
	return a.backend.Type(ctx, text)
}

func (a pointerActor) press(ctx context.Context, _ schemas.ElementHandle, key string) error {
	return a.backend.Press(ctx, key)
}

func (a pointerActor) scroll(ctx context.Context, h schemas.ElementHandle, dx, dy float64) error {
	p, err := centerOf(h)
	if err != nil {
		return err
	}
	return a.backend.Scroll(ctx, p, dx, dy)
}

func (a pointerActor) drag(ctx context.Context, from, to schemas.ElementHandle) error {
	src, err := centerOf(from)
	if err != nil {
		return err
	}
	dst, err := centerOf(to)
	if err != nil {
		return err
	}
	return a.backend.Drag(ctx, src, dst)
}

type structuralActor struct {
	backend schemas.StructuralBackend
}

func (a structuralActor) kind() schemas.BackendKind { return schemas.BackendStructural }

func (a structuralActor) click(ctx context.Context, h schemas.ElementHandle, button schemas.MouseButton, count int) error {
	return a.backend.Act(ctx, h, schemas.ActionClick, schemas.ActionParams{Button: button, ClickCount: count})
}

func (a structuralActor) hover(ctx context.Context, h schemas.ElementHandle) error {
	return a.backend.Act(ctx, h, schemas.ActionHover, schemas.ActionParams{})
}

func (a structuralActor) focus(ctx context.Context, h schemas.ElementHandle) error {
	return a.backend.Act(ctx, h, schemas.ActionFocus, schemas.ActionParams{})
}

func (a structuralActor) typeText(ctx context.Context, h schemas.ElementHandle, text string) error {
	return a.backend.Act(ctx, h, schemas.ActionType, schemas.ActionParams{Text: text})
}

func (a structuralActor) press(ctx context.Context, h schemas.ElementHandle, key string) error {
	return a.backend.Act(ctx, h, schemas.ActionPress, schemas.ActionParams{Key: key})
}

func (a structuralActor) scroll(ctx context.Context, h schemas.ElementHandle, dx, dy float64) error {
	return a.backend.Act(ctx, h, schemas.ActionScroll, schemas.ActionParams{DeltaX: dx, DeltaY: dy})
}

func (a structuralActor) drag(ctx context.Context, from, to schemas.ElementHandle) error {
	return a.backend.Act(ctx, from, schemas.ActionDrag, schemas.ActionParams{To: &to})
}
