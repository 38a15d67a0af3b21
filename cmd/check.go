package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/config"
	"github.com/xkilldash9x/webprobe/internal/observability"
)

// capabilityReport is the per-endpoint entry printed by check.
type capabilityReport struct {
	Endpoint  string                       `json:"endpoint"`
	SessionID string                       `json:"sessionId,omitempty"`
	Backends  map[schemas.BackendKind]bool `json:"backends,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var (
		endpoints   []string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Connect to one or more apps and report which backends come up",
		Long: `Connects a separate session to every endpoint, prints which backends are
available and disconnects. Sessions share nothing and run in parallel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			if len(endpoints) == 0 {
				endpoints = []string{cfg.Browser().Endpoint}
			}
			logger := observability.GetLogger()

			reports := make([]capabilityReport, len(endpoints))
			var g errgroup.Group
			if concurrency > 0 {
				g.SetLimit(concurrency)
			}
			for i, endpoint := range endpoints {
				g.Go(func() error {
					c := *cfg
					c.SetBrowserEndpoint(endpoint)
					if c.Native().Endpoint != "" && len(endpoints) > 1 {
						// A fixed native endpoint would point every session at one app.
						c.NativeCfg.Endpoint = ""
					}
					reports[i] = checkEndpoint(ctx, &c, logger)
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for _, r := range reports {
				if r.Error != "" {
					failed++
				}
			}
			if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d endpoints failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&endpoints, "endpoints", nil, "DevTools endpoints to check (default is browser.endpoint)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum sessions connecting at once")
	return cmd
}

func checkEndpoint(ctx context.Context, cfg config.Interface, logger *zap.Logger) capabilityReport {
	report := capabilityReport{Endpoint: cfg.Browser().Endpoint}
	s, cleanup, err := newSession(ctx, cfg, logger)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer cleanup()

	report.SessionID = s.SessionID()
	if err := s.Connect(ctx); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Backends = make(map[schemas.BackendKind]bool)
	for _, st := range s.Capabilities() {
		if st.Configured {
			report.Backends[st.Kind] = st.Available
		}
	}
	if err := s.Disconnect(context.WithoutCancel(ctx), false); err != nil {
		logger.Warn("Disconnect reported errors.", zap.String("endpoint", report.Endpoint), zap.Error(err))
	}
	return report
}
