// internal/browser/humanoid/humanoid.go

// Package humanoid dispatches pixel-level pointer and keyboard input with
// curved, eased motion. It is the native-input pointer backend used when no
// OS bridge is available.
package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/browser/keys"
)

var errNotConnected = errors.New("native input is not connected")

// Humanoid implements schemas.PointerBackend. Actions are serialized: there
// is one pointer and one keyboard.
type Humanoid struct {
	mu        sync.Mutex
	cfg       Config
	connector Connector
	executor  Executor
	pos       Vector2D
	buttons   schemas.MouseButton
	rng       *rand.Rand
	noise     *perlin.Perlin
	logger    *zap.Logger
}

var _ schemas.PointerBackend = (*Humanoid)(nil)

// New creates a disconnected Humanoid.
func New(cfg Config, connector Connector, logger *zap.Logger) *Humanoid {
	seed := time.Now().UnixNano()
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	} else {
		seed = rng.Int63()
	}
	return &Humanoid{
		cfg:       cfg,
		connector: connector,
		buttons:   schemas.ButtonNone,
		rng:       rng,
		noise:     perlin.NewPerlin(2, 2, 3, seed),
		logger:    logger.Named("native"),
	}
}

func (h *Humanoid) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.executor != nil {
		return nil
	}
	exec, err := h.connector.Open(ctx)
	if err != nil {
		return err
	}
	h.executor = exec
	h.pos = Vector2D{}
	h.buttons = schemas.ButtonNone
	h.logger.Info("Native input connected.")
	return nil
}

func (h *Humanoid) Disconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.executor == nil {
		return nil
	}
	err := h.executor.Close(ctx)
	h.executor = nil
	return err
}

// lock acquires the action lock and returns the executor. The caller must
// unlock h.mu.
func (h *Humanoid) lock() (Executor, error) {
	h.mu.Lock()
	if h.executor == nil {
		h.mu.Unlock()
		return nil, errNotConnected
	}
	return h.executor, nil
}

func (h *Humanoid) MoveTo(ctx context.Context, p schemas.Point) error {
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	return h.move(ctx, exec, fromPoint(p))
}

func (h *Humanoid) move(ctx context.Context, exec Executor, target Vector2D) error {
	path := planPath(h.pos, target, h.cfg.MoveSteps, h.cfg.CurveSpread, h.cfg.PerlinAmplitude, h.rng, h.noise)
	var interval time.Duration
	if len(path) > 1 {
		interval = h.cfg.MoveDuration / time.Duration(len(path))
	}
	for i, pt := range path {
		err := exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       pt.X,
			Y:       pt.Y,
			Button:  h.buttons,
			Buttons: h.buttons.Mask(),
		})
		if err != nil {
			return err
		}
		h.pos = pt
		if interval > 0 && i < len(path)-1 {
			if err := exec.Sleep(ctx, interval); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Humanoid) Click(ctx context.Context, p schemas.Point, button schemas.MouseButton, count int) error {
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	if button == "" || button == schemas.ButtonNone {
		button = schemas.ButtonLeft
	}
	if count < 1 {
		count = 1
	}
	if err := h.move(ctx, exec, fromPoint(p)); err != nil {
		return err
	}
	for i := 1; i <= count; i++ {
		if err := h.button(ctx, exec, schemas.MousePress, button, i); err != nil {
			return err
		}
		if err := exec.Sleep(ctx, h.cfg.ClickHold); err != nil {
			return err
		}
		if err := h.button(ctx, exec, schemas.MouseRelease, button, i); err != nil {
			return err
		}
	}
	return nil
}

func (h *Humanoid) button(ctx context.Context, exec Executor, typ schemas.MouseEventType, button schemas.MouseButton, count int) error {
	buttons := int64(0)
	if typ == schemas.MousePress {
		buttons = button.Mask()
	}
	err := exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:       typ,
		X:          h.pos.X,
		Y:          h.pos.Y,
		Button:     button,
		Buttons:    buttons,
		ClickCount: count,
	})
	if err != nil {
		return err
	}
	if typ == schemas.MousePress {
		h.buttons = button
	} else {
		h.buttons = schemas.ButtonNone
	}
	return nil
}

// Type sends letters, digits and whitespace as real key presses and inserts
// every other character as text.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	first := true
	for _, r := range text {
		if !first {
			if err := exec.Sleep(ctx, h.cfg.KeyDelay); err != nil {
				return err
			}
		}
		first = false
		if !typeable(r) {
			if err := exec.InsertText(ctx, string(r)); err != nil {
				return err
			}
			continue
		}
		upper := unicode.IsUpper(r)
		ev := keys.Char(r, upper)
		if upper {
			ev.Modifiers = schemas.ModShift
		}
		if err := exec.PressKey(ctx, ev, 0); err != nil {
			return err
		}
	}
	return nil
}

func typeable(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == ' ' || r == '\n' || r == '\r' || r == '\t'
}

func (h *Humanoid) Press(ctx context.Context, key string) error {
	ev, err := keys.Parse(key)
	if err != nil {
		return err
	}
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	return exec.PressKey(ctx, ev, h.cfg.KeyDelay)
}

func (h *Humanoid) Scroll(ctx context.Context, p schemas.Point, deltaX, deltaY float64) error {
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	if err := h.move(ctx, exec, fromPoint(p)); err != nil {
		return err
	}
	return exec.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:   schemas.MouseWheel,
		X:      h.pos.X,
		Y:      h.pos.Y,
		Button: schemas.ButtonNone,
		DeltaX: deltaX,
		DeltaY: deltaY,
	})
}

// Drag presses the left button at from, moves to to with the button held
// and releases there. The button is released even when the move fails.
func (h *Humanoid) Drag(ctx context.Context, from, to schemas.Point) error {
	exec, err := h.lock()
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	if err := h.move(ctx, exec, fromPoint(from)); err != nil {
		return err
	}
	if err := h.button(ctx, exec, schemas.MousePress, schemas.ButtonLeft, 1); err != nil {
		return err
	}
	moveErr := h.move(ctx, exec, fromPoint(to))
	if moveErr == nil {
		moveErr = exec.Sleep(ctx, h.cfg.ClickHold)
	}
	releaseErr := h.button(context.WithoutCancel(ctx), exec, schemas.MouseRelease, schemas.ButtonLeft, 1)
	return errors.Join(moveErr, releaseErr)
}

func (h *Humanoid) Screenshot(ctx context.Context) (string, error) {
	exec, err := h.lock()
	if err != nil {
		return "", err
	}
	defer h.mu.Unlock()
	return exec.CaptureScreenshot(ctx)
}

func (h *Humanoid) ScreenSize(ctx context.Context) (schemas.Size, error) {
	exec, err := h.lock()
	if err != nil {
		return schemas.Size{}, err
	}
	defer h.mu.Unlock()
	return exec.ViewportSize(ctx)
}

// Position reports where the pointer was last moved to.
func (h *Humanoid) Position() schemas.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos.point()
}
