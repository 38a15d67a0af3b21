package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

type rodDialer struct {
	logger *zap.Logger
}

func (d *rodDialer) Dial(ctx context.Context, endpoint, targetURL string) (Conn, error) {
	wsURL, err := launcher.ResolveURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("rod: resolve %s: %w", endpoint, err)
	}

	life, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(wsURL).Context(life)
	if _, err := runWithin(ctx, life, func(context.Context) (struct{}, error) {
		return struct{}{}, browser.Connect()
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("rod: connect: %w", err)
	}

	pages, err := browser.Pages()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rod: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if matchesTarget(info.URL, targetURL) {
			d.logger.Debug("Attached to page target.", zap.String("driver", "rod"), zap.String("url", info.URL))
			return &rodConn{page: p, cancel: cancel}, nil
		}
	}
	cancel()
	return nil, fmt.Errorf("rod: %w (url contains %q)", ErrNoTarget, targetURL)
}

type rodConn struct {
	page   *rod.Page
	cancel context.CancelFunc
}

func (c *rodConn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	res, err := c.page.Call(ctx, string(c.page.SessionID), method, json.RawMessage(b))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(res), nil
}

func (c *rodConn) Close(context.Context) error {
	c.cancel()
	return nil
}
