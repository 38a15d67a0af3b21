package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/bridge"
	"github.com/xkilldash9x/webprobe/internal/browser/cdp"
	"github.com/xkilldash9x/webprobe/internal/browser/humanoid"
	"github.com/xkilldash9x/webprobe/internal/capability"
	"github.com/xkilldash9x/webprobe/internal/config"
	"github.com/xkilldash9x/webprobe/internal/engine"
	"github.com/xkilldash9x/webprobe/internal/llmclient"
	"github.com/xkilldash9x/webprobe/internal/observability"
	"github.com/xkilldash9x/webprobe/internal/store"
	"github.com/xkilldash9x/webprobe/internal/vision"
)

// Session is the part of engine.Manager the commands drive.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context, resetCosts bool) error
	SessionID() string
	Capabilities() []capability.Status
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (*schemas.Snapshot, error)
	Find(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error)
	Count(ctx context.Context, loc schemas.Locator) (int, error)
	WaitFor(ctx context.Context, loc schemas.Locator, opts engine.WaitOptions) (*schemas.ElementHandle, error)
	Perform(ctx context.Context, action schemas.ActionKind, loc schemas.Locator, params schemas.ActionParams) schemas.ActionResult
	Screenshot(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (json.RawMessage, error)
	CostSummary() schemas.CostSummary
}

var _ Session = (*engine.Manager)(nil)

// newSession is swapped out in tests.
var newSession = buildSession

// buildSession wires every configured backend into a Manager. The returned
// cleanup releases resources that outlive Disconnect, such as the ledger pool.
func buildSession(ctx context.Context, cfg config.Interface, logger *zap.Logger) (Session, func(), error) {
	mode, err := schemas.ParseMode(cfg.Engine().Mode)
	if err != nil {
		return nil, nil, err
	}

	browserCfg := cfg.Browser()
	dialer, err := cdp.NewDialer(browserCfg.Driver, logger)
	if err != nil {
		return nil, nil, err
	}
	backends := capability.Backends{
		Structural: cdp.New(dialer, cdp.OptionsFromConfig(browserCfg), logger),
	}

	if b := cfg.Bridge(); b.Enabled {
		backends.Bridge = bridge.NewFromConfig(b, logger)
	}
	if n := cfg.Native(); n.Enabled {
		endpoint := n.Endpoint
		if endpoint == "" {
			endpoint = browserCfg.Endpoint
		}
		backends.Native = humanoid.New(humanoid.ConfigFromNative(n), humanoid.CDPConnector{
			Dialer:    dialer,
			Endpoint:  endpoint,
			TargetURL: browserCfg.TargetURL,
			Timeout:   browserCfg.ConnectTimeout,
		}, logger)
	}
	if mode != schemas.ModeDeterministic {
		resolver, err := buildVision(ctx, cfg.Vision(), logger)
		if err != nil {
			// Vision is optional: the Manager simply runs without it.
			logger.Warn("Vision model unavailable.", zap.Error(err))
		} else if resolver != nil {
			backends.Vision = resolver
		}
	}

	eng := cfg.Engine()
	opts := engine.Options{
		Mode:               mode,
		WaitTimeout:        eng.WaitTimeout,
		WaitInterval:       eng.WaitInterval,
		VerifyBeforeAction: eng.VerifyBeforeAction,
		Snapshot: schemas.SnapshotOptions{
			InteractiveOnly: eng.SnapshotInteractiveOnly,
			MaxDepth:        eng.SnapshotMaxDepth,
			WithBoxes:       eng.SnapshotBoxes,
		},
		VisionBudgetUSD: cfg.Vision().MaxCostUSD,
		Pricing:         cfg.Pricing(),
	}

	cleanup := func() {}
	if url := cfg.Database().URL; url != "" {
		ledger, closeLedger, err := store.Open(ctx, url, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cost ledger: %w", err)
		}
		opts.Ledger = ledger
		cleanup = closeLedger
	}

	return engine.New(backends, opts, logger), cleanup, nil
}

// buildVision returns nil when the provider leaves vision to the caller.
func buildVision(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (*vision.Resolver, error) {
	client, err := llmclient.NewClient(ctx, cfg, logger)
	if errors.Is(err, llmclient.ErrNoClient) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return vision.New(client, vision.OptionsFromConfig(cfg), logger), nil
}

// withSession connects a fresh session, runs fn and always disconnects.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s Session) error) error {
	ctx := cmd.Context()
	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()

	s, cleanup, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := s.Disconnect(context.WithoutCancel(ctx), false); err != nil {
			logger.Warn("Disconnect reported errors.", zap.Error(err))
		}
	}()
	return fn(ctx, s)
}
