// Package config loads and validates tqbt run configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when --config is not given and the file exists.
const DefaultFile = "tqbt.yaml"

// Config is the complete tqbt configuration.
type Config struct {
	Data     DataConfig     `json:"data" yaml:"data"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Sweep    SweepConfig    `json:"sweep" yaml:"sweep"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// DataConfig selects the price series.
type DataConfig struct {
	Path       string `json:"path" yaml:"path"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"` // csv or parquet, default by extension
	From       string `json:"from,omitempty" yaml:"from,omitempty"`
	To         string `json:"to,omitempty" yaml:"to,omitempty"`
	Instrument string `json:"instrument,omitempty" yaml:"instrument,omitempty"`
}

// BacktestConfig holds the simulator inputs.
type BacktestConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	CostRate       float64 `json:"cost_rate" yaml:"cost_rate"`
}

// MetricsConfig holds the annualization inputs.
type MetricsConfig struct {
	PeriodsPerYear int     `json:"periods_per_year" yaml:"periods_per_year"`
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

// StrategyConfig names the registered strategy and its parameter overrides.
type StrategyConfig struct {
	Name   string            `json:"name" yaml:"name"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// SweepConfig describes a parameter grid.
type SweepConfig struct {
	Workers     int                  `json:"workers" yaml:"workers"`
	Grid        map[string][]float64 `json:"grid,omitempty" yaml:"grid,omitempty"`
	MetricsFile string               `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"`                         // "csv", "sqlite" or "none"
	Driver     string `json:"driver,omitempty" yaml:"driver,omitempty"` // sqlite3 (cgo) or sqlite (pure Go)
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadFromFile loads configuration from a YAML or JSON file, applies
// environment overrides and validates the result. Missing fields keep
// their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML for .yaml/.yml paths and
// as indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TQBT_* variables looked up with getenv.
// Unparseable values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TQBT_DATA"); v != "" {
		c.Data.Path = v
	}
	if v := getenv("TQBT_DB"); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := getenv("TQBT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("TQBT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sweep.Workers = n
		}
	}
}

// Validate checks that the configuration is usable. Data.Path is not
// required here because the CLI may supply it with --data.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	if c.Backtest.CostRate < 0 || c.Backtest.CostRate >= 1 {
		return fmt.Errorf("backtest.cost_rate must be in [0, 1)")
	}
	if c.Metrics.PeriodsPerYear <= 0 {
		return fmt.Errorf("metrics.periods_per_year must be positive")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, ok := strategies.Lookup(c.Strategy.Name); !ok {
		return fmt.Errorf("unknown strategy: %s", c.Strategy.Name)
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep.workers must not be negative")
	}
	if c.Data.Format != "" {
		if _, err := market.FormatOf("", c.Data.Format); err != nil {
			return fmt.Errorf("data.format: %w", err)
		}
	}
	for _, d := range []struct{ name, value string }{{"data.from", c.Data.From}, {"data.to", c.Data.To}} {
		if d.value == "" {
			continue
		}
		if _, err := market.ParseTime(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}

	switch c.Journal.Type {
	case "none", "":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
		if d := c.Journal.Driver; d != "" && d != "sqlite3" && d != "sqlite" {
			return fmt.Errorf("journal.driver must be 'sqlite3' or 'sqlite'")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'auto', 'console' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults: the volatility
// scaled moving average strategy on daily bars with no journal.
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital: 100000,
			CostRate:       0.0005,
		},
		Metrics: MetricsConfig{
			PeriodsPerYear: 252,
		},
		Strategy: StrategyConfig{
			Name: "ma-cross",
		},
		Sweep: SweepConfig{
			Workers: 4,
		},
		Journal: JournalConfig{
			Type:       "none",
			Driver:     "sqlite3",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
			DBPath:     "./tqbt.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
