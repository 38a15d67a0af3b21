package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/config"
)

// Helper methods.
const (
	MethodClick      = "click"
	MethodMove       = "move"
	MethodType       = "type"
	MethodPress      = "press"
	MethodScroll     = "scroll"
	MethodDrag       = "drag"
	MethodScreenshot = "screenshot"
	MethodScreenSize = "screenSize"
)

type pointParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type clickParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button"`
	Count  int     `json:"count"`
}

type scrollParams struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

type dragParams struct {
	From pointParams `json:"from"`
	To   pointParams `json:"to"`
}

// Backend implements schemas.PointerBackend on top of a Client.
type Backend struct {
	mu           sync.Mutex
	transport    Transport
	callTimeout  time.Duration
	readyTimeout time.Duration
	client       *Client
	logger       *zap.Logger
}

var _ schemas.PointerBackend = (*Backend)(nil)

// New creates a disconnected Backend.
func New(transport Transport, callTimeout, readyTimeout time.Duration, logger *zap.Logger) *Backend {
	return &Backend{
		transport:    transport,
		callTimeout:  callTimeout,
		readyTimeout: readyTimeout,
		logger:       logger.Named("bridge"),
	}
}

// NewFromConfig launches cfg.Command as the helper process.
func NewFromConfig(cfg config.BridgeConfig, logger *zap.Logger) *Backend {
	t := ProcessTransport{Command: cfg.Command, Args: cfg.Args, Logger: logger.Named("bridge")}
	return New(t, cfg.CallTimeout, cfg.ReadyTimeout, logger)
}

func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return nil
	}
	client, err := Dial(ctx, b.transport, b.callTimeout, b.readyTimeout, b.logger)
	if err != nil {
		return err
	}
	b.client = client
	b.logger.Info("OS bridge connected.")
	return nil
}

func (b *Backend) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func (b *Backend) call(ctx context.Context, method string, params, out any) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return schemas.Unavailable(schemas.BackendOSBridge, "not connected")
	}
	return client.Call(ctx, method, params, out)
}

func (b *Backend) Click(ctx context.Context, p schemas.Point, button schemas.MouseButton, count int) error {
	if button == "" || button == schemas.ButtonNone {
		button = schemas.ButtonLeft
	}
	if count < 1 {
		count = 1
	}
	return b.call(ctx, MethodClick, clickParams{X: p.X, Y: p.Y, Button: string(button), Count: count}, nil)
}

func (b *Backend) MoveTo(ctx context.Context, p schemas.Point) error {
	return b.call(ctx, MethodMove, pointParams{X: p.X, Y: p.Y}, nil)
}

func (b *Backend) Type(ctx context.Context, text string) error {
	return b.call(ctx, MethodType, map[string]string{"text": text}, nil)
}

func (b *Backend) Press(ctx context.Context, key string) error {
	return b.call(ctx, MethodPress, map[string]string{"key": key}, nil)
}

func (b *Backend) Scroll(ctx context.Context, p schemas.Point, deltaX, deltaY float64) error {
	return b.call(ctx, MethodScroll, scrollParams{X: p.X, Y: p.Y, DeltaX: deltaX, DeltaY: deltaY}, nil)
}

func (b *Backend) Drag(ctx context.Context, from, to schemas.Point) error {
	return b.call(ctx, MethodDrag, dragParams{From: pointParams(from), To: pointParams(to)}, nil)
}

func (b *Backend) Screenshot(ctx context.Context) (string, error) {
	var res struct {
		Data string `json:"data"`
	}
	if err := b.call(ctx, MethodScreenshot, nil, &res); err != nil {
		return "", err
	}
	if _, err := base64.StdEncoding.DecodeString(res.Data); err != nil {
		return "", fmt.Errorf("screenshot is not base64: %w", err)
	}
	return res.Data, nil
}

func (b *Backend) ScreenSize(ctx context.Context) (schemas.Size, error) {
	var size schemas.Size
	if err := b.call(ctx, MethodScreenSize, nil, &size); err != nil {
		return schemas.Size{}, err
	}
	return size, nil
}
