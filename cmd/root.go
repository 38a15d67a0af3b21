// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webprobe/internal/config"
	"github.com/xkilldash9x/webprobe/internal/envprobe"
	"github.com/xkilldash9x/webprobe/internal/observability"
)

var (
	cfgFile     string
	metricsAddr string
)

type contextKey string

const configKey contextKey = "config"

// newRootCmd builds the command tree. Each call gets its own viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "webprobe",
		Short: "webprobe drives web-view desktop apps by locator, with a vision model fallback.",
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webprobe"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// .env must be loaded before the config reads the environment.
			dotEnvErr := envprobe.LoadDotEnv(".env")

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "webprobe"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			logger := observability.GetLogger()
			if dotEnvErr != nil {
				logger.Warn("Failed to load .env file.", zap.Error(dotEnvErr))
			}
			logger.Debug("Starting webprobe.", zap.String("version", Version), zap.String("config", v.ConfigFileUsed()))

			vision, res := envprobe.New().Apply(cfg.Vision())
			cfg.SetVisionProvider(vision.Provider)
			cfg.SetVisionAPIKey(vision.APIKey)
			logger.Debug("Vision provider resolved.", zap.String("provider", res.Provider), zap.String("source", res.Source))

			if metricsAddr != "" {
				ctx := cmd.Context()
				go func() {
					if err := observability.ServeMetrics(ctx, metricsAddr, logger); err != nil {
						logger.Error("Metrics server failed.", zap.Error(err))
					}
				}()
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./webprobe.yaml, then ~/.webprobe/webprobe.yaml)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while the command runs")
	flags.String("mode", "", "resolution mode: deterministic, visual or hybrid")
	flags.String("endpoint", "", "DevTools endpoint of the app")
	flags.String("driver", "", "CDP driver: chromedp, rod or playwright")
	flags.String("target", "", "attach to the first page whose URL contains this")
	flags.String("provider", "", "vision provider: auto, agent, anthropic, openai or gemini")
	_ = v.BindPFlag("engine.mode", flags.Lookup("mode"))
	_ = v.BindPFlag("browser.endpoint", flags.Lookup("endpoint"))
	_ = v.BindPFlag("browser.driver", flags.Lookup("driver"))
	_ = v.BindPFlag("browser.target_url", flags.Lookup("target"))
	_ = v.BindPFlag("vision.provider", flags.Lookup("provider"))

	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newVersionCmd(),
		newFindCmd(),
		newClickCmd(),
		newTypeCmd(),
		newFillCmd(),
		newPressCmd(),
		newScrollCmd(),
		newSnapshotCmd(),
		newScreenshotCmd(),
		newEvalCmd(),
		newCostsCmd(),
		newConfigCmd(),
		newCheckCmd(),
	)
	return cmd
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Debug("Command execution failed.", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig points v at the config file and the WEBPROBE_ environment.
func initializeConfig(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".webprobe"))
		}
		v.SetConfigName("webprobe")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEBPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFrom returns the configuration stored by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
