package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/logging"
)

var rootCmd = &cobra.Command{
	Use:   "tqbt",
	Short: "Backtest position strategies on leveraged ETF price series",
	Long: `tqbt replays daily (or any fixed period) price bars through a position
strategy and reports how the account would have done.

It provides tools for:
  - Running a single backtest with costs and a full metrics report
  - Sweeping strategy parameter grids in parallel
  - Journaling runs, trades and equity curves to SQLite or CSV
  - Inspecting and converting CSV and Parquet price data`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Set by setup before any command runs.
	cfg    *config.Config
	logger = zerolog.Nop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which sweeps and runs use
// for cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (auto, console, json)")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()
	if flags.Changed("log-level") {
		c.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Logging.Format = logFormat
	}

	cfg = c
	logger = logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	return nil
}

// loadConfig reads path, or the default file when path is empty and the
// file exists, or falls back to defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if path != "" {
		return config.LoadFromFile(path)
	}

	c := config.Default()
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
