package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json/jsontext"
	"go.uber.org/zap"
)

type chromedpDialer struct {
	logger *zap.Logger
}

func (d *chromedpDialer) Dial(ctx context.Context, endpoint, targetURL string) (Conn, error) {
	// The allocator outlives ctx: ctx only bounds the dial.
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), endpoint)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	targets, err := runWithin(ctx, browserCtx, func(c context.Context) ([]*targetInfo, error) {
		infos, err := chromedp.Targets(c)
		if err != nil {
			return nil, err
		}
		out := make([]*targetInfo, 0, len(infos))
		for _, t := range infos {
			out = append(out, &targetInfo{id: t.TargetID, typ: t.Type, url: t.URL})
		}
		return out, nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chromedp: list targets at %s: %w", endpoint, err)
	}

	var picked *targetInfo
	for _, t := range targets {
		if t.typ == "page" && matchesTarget(t.url, targetURL) {
			picked = t
			break
		}
	}
	if picked == nil {
		cancel()
		return nil, fmt.Errorf("chromedp: %w (url contains %q)", ErrNoTarget, targetURL)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(picked.id))
	if _, err := runWithin(ctx, tabCtx, func(c context.Context) (struct{}, error) {
		return struct{}{}, chromedp.Run(c)
	}); err != nil {
		cancelTab()
		cancel()
		return nil, fmt.Errorf("chromedp: attach to %s: %w", picked.url, err)
	}

	d.logger.Debug("Attached to page target.", zap.String("driver", "chromedp"), zap.String("url", picked.url))
	return &chromedpConn{
		tab: tabCtx,
		cancel: func() {
			cancelTab()
			cancel()
		},
	}, nil
}

type targetInfo struct {
	id       target.ID
	typ, url string
}

// runWithin runs fn on long-lived base while honoring the deadline and
// cancellation of the short-lived ctx.
func runWithin[T any](ctx, base context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(base)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

type chromedpConn struct {
	tab    context.Context
	cancel context.CancelFunc
}

func (c *chromedpConn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	cc := chromedp.FromContext(c.tab)
	if cc == nil || cc.Target == nil {
		return nil, fmt.Errorf("chromedp: %s: not attached", method)
	}
	var res jsontext.Value
	if err := cdp.Execute(cdp.WithExecutor(ctx, cc.Target), method, jsontext.Value(b), &res); err != nil {
		return nil, err
	}
	return json.RawMessage(res), nil
}

func (c *chromedpConn) Close(context.Context) error {
	c.cancel()
	return nil
}
