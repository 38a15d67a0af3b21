package schemas

import (
	"context"
	"encoding/json"
)

// Lifecycle is implemented by every backend the Manager connects.
type Lifecycle interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// StructuralCapabilities are the static features a structural backend offers.
type StructuralCapabilities struct {
	Screenshot bool `json:"screenshot"`
	Recording  bool `json:"recording"`
}

// StructuralBackend resolves selectors and performs element-addressed actions
// against the application's DOM and accessibility tree.
type StructuralBackend interface {
	Lifecycle
	Capabilities() StructuralCapabilities
	// FindBySelector returns (nil, nil) when nothing matches. An error means the
	// query itself could not be executed.
	FindBySelector(ctx context.Context, sel Selector) (*ElementHandle, error)
	CountBySelector(ctx context.Context, sel Selector) (int, error)
	Snapshot(ctx context.Context, opts SnapshotOptions) (*Snapshot, error)
	// Verify re-checks that a dom handle is still attached and returns it with a
	// refreshed bounding box. A detached node yields ErrStaleReference.
	Verify(ctx context.Context, h ElementHandle) (ElementHandle, error)
	Act(ctx context.Context, h ElementHandle, action ActionKind, params ActionParams) error
	GetText(ctx context.Context, h ElementHandle) (string, error)
	GetValue(ctx context.Context, h ElementHandle) (string, error)
	GetAttribute(ctx context.Context, h ElementHandle, name string) (string, error)
	IsVisible(ctx context.Context, h ElementHandle) (bool, error)
	IsEnabled(ctx context.Context, h ElementHandle) (bool, error)
	// Screenshot returns a base64 encoded PNG of the viewport.
	Screenshot(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
}

// PointerBackend acts at pixel coordinates. Both the OS bridge and the
// native-input backend implement it.
type PointerBackend interface {
	Lifecycle
	Click(ctx context.Context, p Point, button MouseButton, count int) error
	MoveTo(ctx context.Context, p Point) error
	Type(ctx context.Context, text string) error
	// Press sends a key expression such as "Enter" or "Control+a".
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, p Point, deltaX, deltaY float64) error
	Drag(ctx context.Context, from, to Point) error
	Screenshot(ctx context.Context) (string, error)
	ScreenSize(ctx context.Context) (Size, error)
}

// VisionResolver locates elements, proposes actions and judges assertions
// from screenshots using a vision-capable model.
type VisionResolver interface {
	Lifecycle
	Provider() string
	FindElement(ctx context.Context, req FindElementRequest) (*FindElementResult, error)
	NextAction(ctx context.Context, req NextActionRequest) (*NextActionResult, error)
	AssertVisual(ctx context.Context, req AssertVisualRequest) (*AssertVisualResult, error)
}
