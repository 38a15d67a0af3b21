// internal/browser/humanoid/executor.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/browser/cdp"
)

// Executor is the low-level event sink the Humanoid drives.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	// PressKey holds the event's modifiers, taps the key and releases them.
	PressKey(ctx context.Context, ev schemas.KeyEventData, hold time.Duration) error
	InsertText(ctx context.Context, text string) error
	CaptureScreenshot(ctx context.Context) (string, error)
	ViewportSize(ctx context.Context) (schemas.Size, error)
	Close(ctx context.Context) error
}

// Connector opens an Executor against the application's page.
type Connector interface {
	Open(ctx context.Context) (Executor, error)
}

// CDPConnector dials a dedicated CDP session for native input.
type CDPConnector struct {
	Dialer    cdp.Dialer
	Endpoint  string
	TargetURL string
	Timeout   time.Duration
}

func (c CDPConnector) Open(ctx context.Context) (Executor, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	conn, err := c.Dialer.Dial(ctx, c.Endpoint, c.TargetURL)
	if err != nil {
		return nil, err
	}
	return &cdpExecutor{conn: conn, input: cdp.NewInput(conn)}, nil
}

// cdpExecutor adapts cdp.Input to the Executor interface.
type cdpExecutor struct {
	conn  cdp.Conn
	input *cdp.Input
}

var _ Executor = (*cdpExecutor)(nil)

func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	return e.input.DispatchMouseEvent(ctx, data)
}

func (e *cdpExecutor) PressKey(ctx context.Context, ev schemas.KeyEventData, hold time.Duration) error {
	return e.input.Press(ctx, ev, hold)
}

func (e *cdpExecutor) InsertText(ctx context.Context, text string) error {
	return e.input.InsertText(ctx, text)
}

func (e *cdpExecutor) CaptureScreenshot(ctx context.Context) (string, error) {
	return e.input.CaptureScreenshot(ctx)
}

func (e *cdpExecutor) ViewportSize(ctx context.Context) (schemas.Size, error) {
	return e.input.ViewportSize(ctx)
}

func (e *cdpExecutor) Close(ctx context.Context) error { return e.conn.Close(ctx) }
