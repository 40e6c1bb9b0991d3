package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/launchforge/statecore"
	"github.com/launchforge/statecore/charts"
	"github.com/launchforge/statecore/internal/config"
	"github.com/launchforge/statecore/internal/coordinate"
	"github.com/launchforge/statecore/internal/persist"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func openAdapter(cfg config.Config) (persist.Adapter, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		return persist.OpenSQLite(cfg.StoragePath)
	case "file":
		return persist.NewFile(cfg.StoragePath)
	case "memory":
		return persist.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	adapter, err := openAdapter(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer adapter.Close()

	orc, err := statecore.New(
		statecore.WithCharts(charts.All()...),
		statecore.WithRules(charts.DefaultRules()),
		statecore.WithAdapter(adapter),
		statecore.WithLogger(log),
		statecore.WithCleanupInterval(cfg.CleanupInterval),
		statecore.WithInactivityThreshold(cfg.InactivityThreshold),
		statecore.WithCoordinatorOptions(
			coordinate.WithWorkers(cfg.CoordinatorWorkers),
			coordinate.WithMaxTries(cfg.CoordinatorMaxTries),
			coordinate.WithMaxDelay(cfg.CoordinatorMaxDelay),
		),
	)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := orc.Rehydrate(ctx); err != nil {
		cancel()
		return fmt.Errorf("rehydrate: %w", err)
	}
	cancel()

	orc.Start()
	log.Info().
		Str("driver", cfg.StorageDriver).
		Int("rules", orc.SystemHealth().Rules).
		Msg("orchestrator started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	orc.Stop()
	return nil
}

func chartsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "charts [entity-type]",
		Short: "Print chart definitions as Graphviz DOT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range charts.All() {
				if len(args) == 1 && string(c.Type) != args[0] {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), statecore.ExportDOT(c, ""))
			}
			return nil
		},
	}
}

func main() {
	var (
		cfgPath  string
		logLevel string
	)

	root := &cobra.Command{
		Use:     "statecored",
		Short:   "State machine orchestration daemon for launch-platform entities",
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("config")
			if cfgPath == "" {
				cfgPath = config.DefaultPath()
			}
			cfg, err := config.Load(cfgPath, explicit)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, newLogger(cfg.LogLevel))
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.statecore/config.toml)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.AddCommand(chartsCmd())

	if err := root.Execute(); err != nil {
		logger := newLogger("info")
		logger.Error().Err(err).Msg("statecored")
		os.Exit(1)
	}
}
