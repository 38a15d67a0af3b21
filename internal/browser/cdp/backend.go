package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/config"
)

// Options for the structural backend. Zero timeouts take the defaults.
type Options struct {
	Endpoint          string
	TargetURL         string
	ConnectTimeout    time.Duration
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
}

// OptionsFromConfig maps the browser configuration section.
func OptionsFromConfig(cfg config.BrowserConfig) Options {
	return Options{
		Endpoint:          cfg.Endpoint,
		TargetURL:         cfg.TargetURL,
		ConnectTimeout:    cfg.ConnectTimeout,
		ActionTimeout:     cfg.ActionTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	return o
}

var errNotConnected = errors.New("cdp: not connected")

// Backend is the structural backend: it queries the DOM and accessibility
// tree of the page target and acts on elements by node.
type Backend struct {
	mu     sync.Mutex
	dialer Dialer
	opts   Options
	conn   Conn
	input  *Input
	logger *zap.Logger
}

// New creates a disconnected backend.
func New(dialer Dialer, opts Options, logger *zap.Logger) *Backend {
	return &Backend{dialer: dialer, opts: opts.withDefaults(), logger: logger.Named("cdp")}
}

var _ schemas.StructuralBackend = (*Backend)(nil)

func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, b.opts.ConnectTimeout)
	defer cancel()

	conn, err := b.dialer.Dial(dialCtx, b.opts.Endpoint, b.opts.TargetURL)
	if err != nil {
		return err
	}
	for _, domain := range []string{"Page.enable", "DOM.enable", "Accessibility.enable", "Runtime.enable"} {
		if _, err := conn.Call(dialCtx, domain, nil); err != nil {
			_ = conn.Close(ctx)
			return fmt.Errorf("%s: %w", domain, err)
		}
	}
	b.conn = conn
	b.input = NewInput(conn)
	b.logger.Info("Structural backend connected.", zap.String("endpoint", b.opts.Endpoint), zap.String("target", b.opts.TargetURL))
	return nil
}

func (b *Backend) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close(ctx)
	b.conn, b.input = nil, nil
	return err
}

func (b *Backend) connection() (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, errNotConnected
	}
	return b.conn, nil
}

func (b *Backend) pointer() (*Input, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.input == nil {
		return nil, errNotConnected
	}
	return b.input, nil
}

func (b *Backend) Capabilities() schemas.StructuralCapabilities {
	return schemas.StructuralCapabilities{Screenshot: true}
}

func (b *Backend) timed(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.opts.ActionTimeout)
}

// FindBySelector returns the Nth match, or (nil, nil) when there is none.
func (b *Backend) FindBySelector(ctx context.Context, sel schemas.Selector) (*schemas.ElementHandle, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	matches, err := b.candidates(ctx, sel)
	if err != nil {
		return nil, err
	}
	if sel.Nth < 0 || sel.Nth >= len(matches) {
		return nil, nil
	}
	id, err := b.backendOf(ctx, matches[sel.Nth])
	if err != nil {
		return nil, err
	}
	h, err := b.describe(ctx, id, sel.Nth, true)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (b *Backend) CountBySelector(ctx context.Context, sel schemas.Selector) (int, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	matches, err := b.candidates(ctx, sel)
	return len(matches), err
}

// Verify confirms the node is still attached and refreshes its box.
func (b *Backend) Verify(ctx context.Context, h schemas.ElementHandle) (schemas.ElementHandle, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	id, err := backendID(h)
	if err != nil {
		return h, err
	}
	raw, err := b.callOn(ctx, id, fnIsConnected)
	if err != nil {
		if isMissingNode(err) {
			return h, schemas.ErrStaleReference
		}
		return h, err
	}
	if ok, err := decodeBool(raw); err != nil || !ok {
		return h, schemas.ErrStaleReference
	}
	box, err := b.box(ctx, id)
	if err != nil {
		return h, err
	}
	return h.WithBox(box), nil
}

func isMissingNode(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") || strings.Contains(msg, "Could not find node")
}

// center scrolls the node into view and returns the middle of its box.
func (b *Backend) center(ctx context.Context, id int64) (schemas.Point, error) {
	if err := b.call(ctx, "DOM.scrollIntoViewIfNeeded", map[string]any{"backendNodeId": id}, nil); err != nil && !isNoLayout(err) {
		return schemas.Point{}, err
	}
	box, err := b.box(ctx, id)
	if err != nil {
		return schemas.Point{}, err
	}
	if box == nil {
		return schemas.Point{}, fmt.Errorf("element %s is not rendered", handleID(id))
	}
	return box.Center(), nil
}

func (b *Backend) Act(ctx context.Context, h schemas.ElementHandle, action schemas.ActionKind, params schemas.ActionParams) error {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	id, err := backendID(h)
	if err != nil {
		return err
	}
	in, err := b.pointer()
	if err != nil {
		return err
	}

	switch action {
	case schemas.ActionClick, schemas.ActionDoubleClick, schemas.ActionRightClick:
		p, err := b.center(ctx, id)
		if err != nil {
			return err
		}
		button, count := params.Button, params.ClickCount
		if button == "" {
			button = schemas.ButtonLeft
		}
		if count <= 0 {
			count = 1
		}
		return click(ctx, in, p, button, count)

	case schemas.ActionHover:
		p, err := b.center(ctx, id)
		if err != nil {
			return err
		}
		return in.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: p.X, Y: p.Y})

	case schemas.ActionFocus:
		return b.call(ctx, "DOM.focus", map[string]any{"backendNodeId": id}, nil)

	case schemas.ActionType:
		if err := b.call(ctx, "DOM.focus", map[string]any{"backendNodeId": id}, nil); err != nil {
			return err
		}
		return in.InsertText(ctx, params.Text)

	case schemas.ActionPress:
		if err := b.call(ctx, "DOM.focus", map[string]any{"backendNodeId": id}, nil); err != nil {
			return err
		}
		return in.PressExpression(ctx, params.Key)

	case schemas.ActionScroll:
		p, err := b.center(ctx, id)
		if err != nil {
			_, err = b.callOn(ctx, id, fnScrollBy, params.DeltaX, params.DeltaY)
			return err
		}
		return in.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseWheel, X: p.X, Y: p.Y, DeltaX: params.DeltaX, DeltaY: params.DeltaY,
		})

	case schemas.ActionDrag:
		if params.To == nil {
			return errors.New("drag requires a drop target")
		}
		from, err := b.center(ctx, id)
		if err != nil {
			return err
		}
		var to schemas.Point
		toID, idErr := backendID(*params.To)
		switch {
		case idErr == nil:
			if to, err = b.center(ctx, toID); err != nil {
				return err
			}
		case params.To.BoundingBox != nil:
			to = params.To.BoundingBox.Center()
		default:
			return idErr
		}
		return drag(ctx, in, from, to, 10)
	}
	return fmt.Errorf("action %q is not supported by the structural backend", action)
}

func click(ctx context.Context, in *Input, p schemas.Point, button schemas.MouseButton, count int) error {
	if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: p.X, Y: p.Y}); err != nil {
		return err
	}
	for i := 1; i <= count; i++ {
		if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MousePress, X: p.X, Y: p.Y, Button: button, Buttons: button.Mask(), ClickCount: i,
		}); err != nil {
			return err
		}
		if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseRelease, X: p.X, Y: p.Y, Button: button, ClickCount: i,
		}); err != nil {
			return err
		}
	}
	return nil
}

func drag(ctx context.Context, in *Input, from, to schemas.Point, steps int) error {
	left := schemas.ButtonLeft
	if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{Type: schemas.MouseMove, X: from.X, Y: from.Y}); err != nil {
		return err
	}
	if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type: schemas.MousePress, X: from.X, Y: from.Y, Button: left, Buttons: left.Mask(), ClickCount: 1,
	}); err != nil {
		return err
	}
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x, y := from.X+(to.X-from.X)*t, from.Y+(to.Y-from.Y)*t
		if err := in.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type: schemas.MouseMove, X: x, Y: y, Button: left, Buttons: left.Mask(),
		}); err != nil {
			return err
		}
	}
	return in.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type: schemas.MouseRelease, X: to.X, Y: to.Y, Button: left, ClickCount: 1,
	})
}

func (b *Backend) query(ctx context.Context, h schemas.ElementHandle, fn string, args ...any) (json.RawMessage, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	id, err := backendID(h)
	if err != nil {
		return nil, err
	}
	return b.callOn(ctx, id, fn, args...)
}

func (b *Backend) GetText(ctx context.Context, h schemas.ElementHandle) (string, error) {
	raw, err := b.query(ctx, h, fnText)
	if err != nil {
		return "", err
	}
	return decodeString(raw)
}

func (b *Backend) GetValue(ctx context.Context, h schemas.ElementHandle) (string, error) {
	raw, err := b.query(ctx, h, fnValue)
	if err != nil {
		return "", err
	}
	return decodeString(raw)
}

// GetAttribute returns "" for an absent attribute.
func (b *Backend) GetAttribute(ctx context.Context, h schemas.ElementHandle, name string) (string, error) {
	raw, err := b.query(ctx, h, fnAttribute, name)
	if err != nil {
		return "", err
	}
	return decodeString(raw)
}

func (b *Backend) IsVisible(ctx context.Context, h schemas.ElementHandle) (bool, error) {
	raw, err := b.query(ctx, h, fnIsVisible)
	if err != nil {
		if isMissingNode(err) {
			return false, nil
		}
		return false, err
	}
	return decodeBool(raw)
}

func (b *Backend) IsEnabled(ctx context.Context, h schemas.ElementHandle) (bool, error) {
	raw, err := b.query(ctx, h, fnIsEnabled)
	if err != nil {
		return false, err
	}
	return decodeBool(raw)
}

func (b *Backend) Screenshot(ctx context.Context) (string, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	in, err := b.pointer()
	if err != nil {
		return "", err
	}
	return in.CaptureScreenshot(ctx)
}

// Evaluate runs an expression in the page, awaiting promises.
func (b *Backend) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	ctx, cancel := b.timed(ctx)
	defer cancel()
	var res struct {
		Result           remoteObject      `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := b.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    script,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, res.ExceptionDetails.err()
	}
	if len(res.Result.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return res.Result.Value, nil
}

// Navigate loads url and waits for the document to finish loading.
func (b *Backend) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	var res struct {
		ErrorText string `json:"errorText"`
	}
	if err := b.call(ctx, "Page.navigate", map[string]any{"url": url}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" {
		return fmt.Errorf("navigate %s: %s", url, res.ErrorText)
	}
	return b.waitLoaded(ctx)
}

func (b *Backend) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	if err := b.call(ctx, "Page.reload", map[string]any{}, nil); err != nil {
		return err
	}
	return b.waitLoaded(ctx)
}

func (b *Backend) waitLoaded(ctx context.Context) error {
	for {
		raw, err := b.Evaluate(ctx, "document.readyState")
		if err == nil {
			if state, _ := decodeString(raw); state == "complete" {
				return nil
			}
		}
		if err := sleep(ctx, 50*time.Millisecond); err != nil {
			return fmt.Errorf("waiting for load: %w", err)
		}
	}
}
