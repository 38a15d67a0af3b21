package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/browser/keys"
)

// Input dispatches raw mouse and keyboard events into the page. It is shared
// by the structural backend and the native-input executor.
type Input struct {
	conn Conn
}

// NewInput wraps conn.
func NewInput(conn Conn) *Input { return &Input{conn: conn} }

func modifiers(m schemas.KeyModifier) input.Modifier {
	var out input.Modifier
	if m&schemas.ModAlt != 0 {
		out |= input.ModifierAlt
	}
	if m&schemas.ModCtrl != 0 {
		out |= input.ModifierCtrl
	}
	if m&schemas.ModMeta != 0 {
		out |= input.ModifierMeta
	}
	if m&schemas.ModShift != 0 {
		out |= input.ModifierShift
	}
	return out
}

// DispatchMouseEvent sends one mouse event.
func (in *Input) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	button := data.Button
	if button == "" {
		button = schemas.ButtonNone
	}
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(button)).
		WithButtons(data.Buttons).
		WithClickCount(int64(data.ClickCount))
	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}
	_, err := in.conn.Call(ctx, input.CommandDispatchMouseEvent, p)
	return err
}

// DispatchKey sends a key down or up for one key.
func (in *Input) DispatchKey(ctx context.Context, ev schemas.KeyEventData, down bool) error {
	typ := input.KeyUp
	if down {
		typ = input.KeyRawDown
		if ev.Text != "" {
			typ = input.KeyDown
		}
	}
	p := input.DispatchKeyEvent(typ).
		WithModifiers(modifiers(ev.Modifiers)).
		WithKey(ev.Key).
		WithCode(ev.Code).
		WithWindowsVirtualKeyCode(ev.KeyCode).
		WithNativeVirtualKeyCode(ev.KeyCode)
	if down && ev.Text != "" {
		p = p.WithText(ev.Text).WithUnmodifiedText(ev.Text)
	}
	_, err := in.conn.Call(ctx, input.CommandDispatchKeyEvent, p)
	return err
}

// Press holds the modifiers of a parsed chord, taps the key and releases
// everything in reverse order. hold is the pause between down and up.
func (in *Input) Press(ctx context.Context, ev schemas.KeyEventData, hold time.Duration) error {
	mods := keys.ModifierKeys(ev.Modifiers)
	held := schemas.ModNone
	for _, m := range mods {
		m.Modifiers = held | modifierOf(m.Key)
		held = m.Modifiers
		if err := in.DispatchKey(ctx, m, true); err != nil {
			return err
		}
	}
	if err := in.DispatchKey(ctx, ev, true); err != nil {
		return err
	}
	if hold > 0 {
		if err := sleep(ctx, hold); err != nil {
			return err
		}
	}
	if err := in.DispatchKey(ctx, ev, false); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		held &^= modifierOf(mods[i].Key)
		mods[i].Modifiers = held
		if err := in.DispatchKey(ctx, mods[i], false); err != nil {
			return err
		}
	}
	return nil
}

// PressExpression parses a key expression such as "Control+a" and presses it.
func (in *Input) PressExpression(ctx context.Context, expr string) error {
	ev, err := keys.Parse(expr)
	if err != nil {
		return err
	}
	return in.Press(ctx, ev, 0)
}

// InsertText inserts text at the caret as if typed via an IME.
func (in *Input) InsertText(ctx context.Context, text string) error {
	_, err := in.conn.Call(ctx, input.CommandInsertText, input.InsertText(text))
	return err
}

// CaptureScreenshot returns the viewport as a base64 PNG.
func (in *Input) CaptureScreenshot(ctx context.Context) (string, error) {
	raw, err := in.conn.Call(ctx, page.CommandCaptureScreenshot, page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng))
	if err != nil {
		return "", err
	}
	var res struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode screenshot: %w", err)
	}
	if _, err := base64.StdEncoding.DecodeString(res.Data); err != nil {
		return "", fmt.Errorf("screenshot is not base64: %w", err)
	}
	return res.Data, nil
}

// ViewportSize reports the CSS layout viewport.
func (in *Input) ViewportSize(ctx context.Context) (schemas.Size, error) {
	raw, err := in.conn.Call(ctx, page.CommandGetLayoutMetrics, nil)
	if err != nil {
		return schemas.Size{}, err
	}
	var res struct {
		CSSLayoutViewport struct {
			ClientWidth  int64 `json:"clientWidth"`
			ClientHeight int64 `json:"clientHeight"`
		} `json:"cssLayoutViewport"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return schemas.Size{}, fmt.Errorf("decode layout metrics: %w", err)
	}
	return schemas.Size{Width: res.CSSLayoutViewport.ClientWidth, Height: res.CSSLayoutViewport.ClientHeight}, nil
}

func modifierOf(key string) schemas.KeyModifier {
	switch key {
	case "Control":
		return schemas.ModCtrl
	case "Alt":
		return schemas.ModAlt
	case "Meta":
		return schemas.ModMeta
	case "Shift":
		return schemas.ModShift
	}
	return schemas.ModNone
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
