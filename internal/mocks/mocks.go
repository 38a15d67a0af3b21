// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/llmclient"
)

// -- Structural Backend Mock --

// MockStructuralBackend mocks the schemas.StructuralBackend interface.
type MockStructuralBackend struct {
	mock.Mock
}

func (m *MockStructuralBackend) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStructuralBackend) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStructuralBackend) Capabilities() schemas.StructuralCapabilities {
	args := m.Called()
	return args.Get(0).(schemas.StructuralCapabilities)
}

func (m *MockStructuralBackend) FindBySelector(ctx context.Context, sel schemas.Selector) (*schemas.ElementHandle, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ElementHandle), args.Error(1)
}

func (m *MockStructuralBackend) CountBySelector(ctx context.Context, sel schemas.Selector) (int, error) {
	args := m.Called(ctx, sel)
	return args.Int(0), args.Error(1)
}

func (m *MockStructuralBackend) Snapshot(ctx context.Context, opts schemas.SnapshotOptions) (*schemas.Snapshot, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Snapshot), args.Error(1)
}

func (m *MockStructuralBackend) Verify(ctx context.Context, h schemas.ElementHandle) (schemas.ElementHandle, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(schemas.ElementHandle), args.Error(1)
}

func (m *MockStructuralBackend) Act(ctx context.Context, h schemas.ElementHandle, action schemas.ActionKind, params schemas.ActionParams) error {
	return m.Called(ctx, h, action, params).Error(0)
}

func (m *MockStructuralBackend) GetText(ctx context.Context, h schemas.ElementHandle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *MockStructuralBackend) GetValue(ctx context.Context, h schemas.ElementHandle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *MockStructuralBackend) GetAttribute(ctx context.Context, h schemas.ElementHandle, name string) (string, error) {
	args := m.Called(ctx, h, name)
	return args.String(0), args.Error(1)
}

func (m *MockStructuralBackend) IsVisible(ctx context.Context, h schemas.ElementHandle) (bool, error) {
	args := m.Called(ctx, h)
	return args.Bool(0), args.Error(1)
}

func (m *MockStructuralBackend) IsEnabled(ctx context.Context, h schemas.ElementHandle) (bool, error) {
	args := m.Called(ctx, h)
	return args.Bool(0), args.Error(1)
}

func (m *MockStructuralBackend) Screenshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockStructuralBackend) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	args := m.Called(ctx, script)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockStructuralBackend) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockStructuralBackend) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Pointer Backend Mock --

// MockPointerBackend mocks the schemas.PointerBackend interface. It stands in
// for both the OS bridge and the native-input backend.
type MockPointerBackend struct {
	mock.Mock
}

func (m *MockPointerBackend) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPointerBackend) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPointerBackend) Click(ctx context.Context, p schemas.Point, button schemas.MouseButton, count int) error {
	return m.Called(ctx, p, button, count).Error(0)
}

func (m *MockPointerBackend) MoveTo(ctx context.Context, p schemas.Point) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPointerBackend) Type(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockPointerBackend) Press(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPointerBackend) Scroll(ctx context.Context, p schemas.Point, deltaX, deltaY float64) error {
	return m.Called(ctx, p, deltaX, deltaY).Error(0)
}

func (m *MockPointerBackend) Drag(ctx context.Context, from, to schemas.Point) error {
	return m.Called(ctx, from, to).Error(0)
}

func (m *MockPointerBackend) Screenshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPointerBackend) ScreenSize(ctx context.Context) (schemas.Size, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Size), args.Error(1)
}

// -- Vision Resolver Mock --

// MockVisionResolver mocks the schemas.VisionResolver interface.
type MockVisionResolver struct {
	mock.Mock
}

func (m *MockVisionResolver) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockVisionResolver) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockVisionResolver) Provider() string {
	return m.Called().String(0)
}

func (m *MockVisionResolver) FindElement(ctx context.Context, req schemas.FindElementRequest) (*schemas.FindElementResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.FindElementResult), args.Error(1)
}

func (m *MockVisionResolver) NextAction(ctx context.Context, req schemas.NextActionRequest) (*schemas.NextActionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.NextActionResult), args.Error(1)
}

func (m *MockVisionResolver) AssertVisual(ctx context.Context, req schemas.AssertVisualRequest) (*schemas.AssertVisualResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.AssertVisualResult), args.Error(1)
}

// -- LLM Client Mock --

// MockLLMClient mocks the llmclient.Client interface.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Provider() string { return m.Called().String(0) }

func (m *MockLLMClient) Model() string { return m.Called().String(0) }

// Generate provides a mock function for model calls.
func (m *MockLLMClient) Generate(ctx context.Context, req llmclient.Request) (*llmclient.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llmclient.Response), args.Error(1)
}

func (m *MockLLMClient) Close() error { return m.Called().Error(0) }

// Compile-time interface checks.
var (
	_ schemas.StructuralBackend = (*MockStructuralBackend)(nil)
	_ schemas.PointerBackend    = (*MockPointerBackend)(nil)
	_ schemas.VisionResolver    = (*MockVisionResolver)(nil)
	_ llmclient.Client          = (*MockLLMClient)(nil)
)
