package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type playwrightDialer struct {
	logger *zap.Logger
}

func (d *playwrightDialer) Dial(ctx context.Context, endpoint, targetURL string) (Conn, error) {
	type dialed struct {
		pw      *playwright.Playwright
		browser playwright.Browser
		session playwright.CDPSession
		url     string
	}
	res, err := runWithin(ctx, context.Background(), func(context.Context) (*dialed, error) {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start driver: %w", err)
		}
		browser, err := pw.Chromium.ConnectOverCDP(endpoint)
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("connect over cdp: %w", err)
		}
		for _, bc := range browser.Contexts() {
			for _, page := range bc.Pages() {
				if !matchesTarget(page.URL(), targetURL) {
					continue
				}
				session, err := bc.NewCDPSession(page)
				if err != nil {
					_ = browser.Close()
					_ = pw.Stop()
					return nil, fmt.Errorf("open cdp session: %w", err)
				}
				return &dialed{pw: pw, browser: browser, session: session, url: page.URL()}, nil
			}
		}
		_ = browser.Close()
		_ = pw.Stop()
		return nil, ErrNoTarget
	})
	if err != nil {
		return nil, fmt.Errorf("playwright: %w (endpoint %s, url contains %q)", err, endpoint, targetURL)
	}
	d.logger.Debug("Attached to page target.", zap.String("driver", "playwright"), zap.String("url", res.url))
	return &playwrightConn{pw: res.pw, browser: res.browser, session: res.session}, nil
}

type playwrightConn struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	session playwright.CDPSession
}

func (c *playwrightConn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("params for %s must be an object: %w", method, err)
	}
	return runWithin(ctx, context.Background(), func(context.Context) (json.RawMessage, error) {
		out, err := c.session.Send(method, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
}

// Close detaches the session and disconnects. A browser reached over CDP
// is not shut down by Close.
func (c *playwrightConn) Close(context.Context) error {
	return errors.Join(c.session.Detach(), c.browser.Close(), c.pw.Stop())
}
