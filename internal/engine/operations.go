package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/locator"
)

// Snapshot takes a fresh structural snapshot and makes it current.
func (m *Manager) Snapshot(ctx context.Context) (*schemas.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireConnected(); err != nil {
		return nil, err
	}
	return m.cache.Refresh(ctx)
}

// Invalidate drops the current snapshot. Refs minted by it stop resolving.
func (m *Manager) Invalidate() {
	m.cache.Invalidate()
}

// Navigate loads url and invalidates the snapshot, even on failure.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.cache.Invalidate()
	s, err := m.structural()
	if err != nil {
		return err
	}
	return schemas.NewBackendError(schemas.BackendStructural, "navigate", s.Navigate(ctx, url))
}

// Reload reloads the page and invalidates the snapshot, even on failure.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.cache.Invalidate()
	s, err := m.structural()
	if err != nil {
		return err
	}
	return schemas.NewBackendError(schemas.BackendStructural, "reload", s.Reload(ctx))
}

// Find resolves loc. It returns (nil, nil) when no enabled strategy finds
// the element.
func (m *Manager) Find(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(ctx, loc)
}

func (m *Manager) find(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	if err := m.requireConnected(); err != nil {
		return nil, err
	}
	return m.resolver.Resolve(ctx, locator.NormalizeLocator(loc))
}

// Count returns the number of structural matches for loc.
func (m *Manager) Count(ctx context.Context, loc schemas.Locator) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireConnected(); err != nil {
		return 0, err
	}
	return m.resolver.Count(ctx, locator.NormalizeLocator(loc))
}

// -- Actions --

// Perform runs one action. It never returns an error; failures are reported
// in the result.
func (m *Manager) Perform(ctx context.Context, action schemas.ActionKind, loc schemas.Locator, params schemas.ActionParams) schemas.ActionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireConnected(); err != nil {
		return schemas.ActionResult{Action: action, Status: schemas.StatusFailed, Error: err.Error()}
	}
	loc = locator.NormalizeLocator(loc)
	if params.Target != nil {
		t := locator.NormalizeLocator(*params.Target)
		params.Target = &t
	}
	return m.dispatcher.Perform(ctx, action, loc, params)
}

func (m *Manager) Click(ctx context.Context, loc schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionClick, loc, schemas.ActionParams{})
}

func (m *Manager) DoubleClick(ctx context.Context, loc schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionDoubleClick, loc, schemas.ActionParams{})
}

func (m *Manager) RightClick(ctx context.Context, loc schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionRightClick, loc, schemas.ActionParams{})
}

func (m *Manager) Hover(ctx context.Context, loc schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionHover, loc, schemas.ActionParams{})
}

// Type focuses the element and types text without clearing it first.
func (m *Manager) Type(ctx context.Context, loc schemas.Locator, text string) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionType, loc, schemas.ActionParams{Text: text})
}

// TypeAndSubmit types text and presses Enter.
func (m *Manager) TypeAndSubmit(ctx context.Context, loc schemas.Locator, text string) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionTypeSubmit, loc, schemas.ActionParams{Text: text})
}

// Fill replaces the element's contents with text.
func (m *Manager) Fill(ctx context.Context, loc schemas.Locator, text string) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionFill, loc, schemas.ActionParams{Text: text})
}

func (m *Manager) Clear(ctx context.Context, loc schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionClear, loc, schemas.ActionParams{})
}

// Press sends a key expression such as "Enter" or "Control+a" to the element.
func (m *Manager) Press(ctx context.Context, loc schemas.Locator, key string) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionPress, loc, schemas.ActionParams{Key: key})
}

func (m *Manager) Scroll(ctx context.Context, loc schemas.Locator, deltaX, deltaY float64) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionScroll, loc, schemas.ActionParams{DeltaX: deltaX, DeltaY: deltaY})
}

func (m *Manager) Drag(ctx context.Context, from, to schemas.Locator) schemas.ActionResult {
	return m.Perform(ctx, schemas.ActionDrag, from, schemas.ActionParams{Target: &to})
}

// -- Queries --

// element resolves loc to a structural handle for a query.
func (m *Manager) element(ctx context.Context, loc schemas.Locator) (schemas.StructuralBackend, schemas.ElementHandle, error) {
	h, err := m.find(ctx, loc)
	if err != nil {
		return nil, schemas.ElementHandle{}, err
	}
	if h == nil {
		return nil, schemas.ElementHandle{}, fmt.Errorf("%s: %w", loc, schemas.ErrNotFound)
	}
	if h.Source == schemas.SourceVLM {
		return nil, schemas.ElementHandle{}, fmt.Errorf("%s: located visually, structural queries need a dom element: %w", loc, schemas.ErrNotFound)
	}
	s, err := m.structural()
	if err != nil {
		return nil, schemas.ElementHandle{}, err
	}
	return s, *h, nil
}

func (m *Manager) GetText(ctx context.Context, loc schemas.Locator) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, h, err := m.element(ctx, loc)
	if err != nil {
		return "", err
	}
	v, err := s.GetText(ctx, h)
	return v, schemas.NewBackendError(schemas.BackendStructural, "getText", err)
}

func (m *Manager) GetValue(ctx context.Context, loc schemas.Locator) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, h, err := m.element(ctx, loc)
	if err != nil {
		return "", err
	}
	v, err := s.GetValue(ctx, h)
	return v, schemas.NewBackendError(schemas.BackendStructural, "getValue", err)
}

func (m *Manager) GetAttribute(ctx context.Context, loc schemas.Locator, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, h, err := m.element(ctx, loc)
	if err != nil {
		return "", err
	}
	v, err := s.GetAttribute(ctx, h, name)
	return v, schemas.NewBackendError(schemas.BackendStructural, "getAttribute", err)
}

// IsVisible reports false, without error, for an element that does not resolve.
func (m *Manager) IsVisible(ctx context.Context, loc schemas.Locator) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.find(ctx, loc)
	if err != nil || h == nil {
		return false, err
	}
	if h.Source == schemas.SourceVLM {
		return true, nil
	}
	s, err := m.structural()
	if err != nil {
		return false, err
	}
	v, err := s.IsVisible(ctx, *h)
	return v, schemas.NewBackendError(schemas.BackendStructural, "isVisible", err)
}

func (m *Manager) IsEnabled(ctx context.Context, loc schemas.Locator) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, h, err := m.element(ctx, loc)
	if err != nil {
		return false, err
	}
	v, err := s.IsEnabled(ctx, h)
	return v, schemas.NewBackendError(schemas.BackendStructural, "isEnabled", err)
}

// Screenshot returns a base64 PNG from the best capture-capable backend.
func (m *Manager) Screenshot(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireConnected(); err != nil {
		return "", err
	}
	img, _, err := m.registry.CaptureScreenshot(ctx)
	return img, err
}

// Evaluate runs script in the page and returns its JSON value.
func (m *Manager) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.structural()
	if err != nil {
		return nil, err
	}
	v, err := s.Evaluate(ctx, script)
	return v, schemas.NewBackendError(schemas.BackendStructural, "evaluate", err)
}

// -- Vision --

// AssertVisual asks the vision model to judge assertion against the screen.
func (m *Manager) AssertVisual(ctx context.Context, assertion, expected string) (*schemas.AssertVisualResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vision, screenshot, err := m.visionInput(ctx)
	if err != nil {
		return nil, err
	}
	res, err := vision.AssertVisual(ctx, schemas.AssertVisualRequest{Screenshot: screenshot, Assertion: assertion, Expected: expected})
	if err != nil {
		return nil, schemas.NewBackendError(schemas.BackendVision, "assertVisual", err)
	}
	m.track(vision, res.Usage, "assertVisual")
	return res, nil
}

// NextAction asks the vision model for the next step towards instruction.
// An empty actionSpace offers schemas.DefaultActionSpace.
func (m *Manager) NextAction(ctx context.Context, instruction string, actionSpace []string) (*schemas.NextActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vision, screenshot, err := m.visionInput(ctx)
	if err != nil {
		return nil, err
	}
	if len(actionSpace) == 0 {
		actionSpace = schemas.DefaultActionSpace
	}
	res, err := vision.NextAction(ctx, schemas.NextActionRequest{Screenshot: screenshot, Instruction: instruction, ActionSpace: actionSpace})
	if err != nil {
		return nil, schemas.NewBackendError(schemas.BackendVision, "nextAction", err)
	}
	m.track(vision, res.Usage, "nextAction")
	return res, nil
}

func (m *Manager) visionInput(ctx context.Context) (schemas.VisionResolver, string, error) {
	if err := m.requireConnected(); err != nil {
		return nil, "", err
	}
	vision, ok := m.registry.Vision()
	if !ok {
		return nil, "", schemas.Unavailable(schemas.BackendVision, "not connected")
	}
	screenshot, _, err := m.registry.CaptureScreenshot(ctx)
	if err != nil {
		return nil, "", err
	}
	return vision, screenshot, nil
}

func (m *Manager) track(vision schemas.VisionResolver, u schemas.TokenUsage, op string) {
	if u.Provider == "" {
		u.Provider = vision.Provider()
	}
	if u.Operation == "" {
		u.Operation = op
	}
	m.tracker.Track(u)
}

// -- Costs --

func (m *Manager) CostSummary() schemas.CostSummary { return m.tracker.Summary() }

// ResetCosts clears tracked entries, keeping pricing overrides.
func (m *Manager) ResetCosts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Reset()
	m.persisted = 0
}

func (m *Manager) SetPricing(provider string, p schemas.Pricing) { m.tracker.SetPricing(provider, p) }

func (m *Manager) structural() (schemas.StructuralBackend, error) {
	if err := m.requireConnected(); err != nil {
		return nil, err
	}
	return m.registry.Structural()
}
