package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/observability"
	"github.com/xkilldash9x/webprobe/internal/store"
)

// costReader is the read side of the cost ledger.
type costReader interface {
	Totals(ctx context.Context, sessionID string) (map[string]schemas.CostBucket, error)
}

// openLedger is swapped out in tests.
var openLedger = func(ctx context.Context, url string, logger *zap.Logger) (costReader, func(), error) {
	s, cleanup, err := store.Open(ctx, url, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, cleanup, nil
}

func newCostsCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Print vision model spend recorded in the cost ledger",
		Long: `Reads per-provider totals from the vlm_costs table. Sessions append their
tracked calls on disconnect when database.url is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			url := cfg.Database().URL
			if url == "" {
				return errors.New("database.url is not set; costs are only recorded with a ledger")
			}
			ledger, cleanup, err := openLedger(ctx, url, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to open cost ledger: %w", err)
			}
			defer cleanup()

			totals, err := ledger.Totals(ctx, sessionID)
			if err != nil {
				return err
			}
			summary := schemas.CostSummary{ByProvider: totals}
			for _, b := range totals {
				summary.TotalCost += b.Cost
				summary.TotalCalls += b.Calls
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "restrict totals to one session id")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long:  "Prints defaults merged with the config file, WEBPROBE_ variables and flags. Secrets are omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
