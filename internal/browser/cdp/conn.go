// Package cdp implements the structural backend over a raw Chrome DevTools
// Protocol connection to the page target of an embedded web view. The
// connection itself comes from one of three drivers: chromedp, go-rod or
// playwright-go.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
)

// Conn is a CDP session attached to one page target.
type Conn interface {
	// Call sends method with params (any JSON-marshalable value, or nil)
	// and returns the raw result object.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	// Close detaches from the target. It never closes the page itself.
	Close(ctx context.Context) error
}

// Dialer attaches to the page target at endpoint whose URL contains
// targetURL (the first page when targetURL is empty).
type Dialer interface {
	Dial(ctx context.Context, endpoint, targetURL string) (Conn, error)
}

// ErrNoTarget is returned when no page target matches.
var ErrNoTarget = errors.New("no matching page target")

// NewDialer returns the dialer for a configured driver name.
func NewDialer(driver string, logger *zap.Logger) (Dialer, error) {
	switch strings.ToLower(driver) {
	case "", config.DriverChromedp:
		return &chromedpDialer{logger: logger}, nil
	case config.DriverRod:
		return &rodDialer{logger: logger}, nil
	case config.DriverPlaywright:
		return &playwrightDialer{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", driver)
	}
}

func matchesTarget(url, want string) bool {
	return want == "" || strings.Contains(url, want)
}

// marshalParams renders params as a JSON object. nil becomes "{}".
func marshalParams(params any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return b, nil
}
