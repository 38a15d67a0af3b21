package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// WaitOptions tune WaitFor. Zero durations take the Manager's defaults and an
// empty State means visible.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	State    schemas.WaitState
}

// WaitFor polls Find until the element reaches the requested state.
//
// A visible wait returns the first handle that resolves. A hidden wait keeps
// polling while the element still resolves and returns (nil, nil) on the
// first poll where it does not. Exhausting the timeout yields a
// *schemas.TimeoutError naming the locator and the timeout; WaitFor never
// reports absence silently.
func (m *Manager) WaitFor(ctx context.Context, loc schemas.Locator, opts WaitOptions) (*schemas.ElementHandle, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = m.opts.WaitTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = m.opts.WaitInterval
	}
	if opts.State == "" {
		opts.State = schemas.WaitVisible
	}
	if opts.State != schemas.WaitVisible && opts.State != schemas.WaitHidden {
		return nil, fmt.Errorf("unknown wait state %q", opts.State)
	}

	deadline := time.Now().Add(opts.Timeout)
	for attempt := 1; ; attempt++ {
		h, err := m.Find(ctx, loc)
		if err != nil {
			return nil, err
		}
		switch {
		case opts.State == schemas.WaitVisible && h != nil:
			return h, nil
		case opts.State == schemas.WaitHidden && h == nil:
			return nil, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			m.logger.Debug("Wait timed out.",
				zap.Stringer("locator", loc),
				zap.String("state", string(opts.State)),
				zap.Int("attempts", attempt))
			return nil, &schemas.TimeoutError{
				Operation: fmt.Sprintf("waitFor %s (%s)", loc, opts.State),
				Deadline:  opts.Timeout,
			}
		}
		timer := time.NewTimer(min(opts.Interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
