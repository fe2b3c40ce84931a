package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/runner"
	"github.com/rustyeddy/backtester/strategies"
)

// runFlags are shared by run and sweep. Each value only overrides the
// config when its flag was given.
type runFlags struct {
	data       string
	format     string
	instrument string
	from       string
	to         string
	strategy   string
	params     []string
	capital    float64
	cost       float64
	periods    int
	riskFree   float64
	journal    string
	db         string
	driver     string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.data, "data", "d", "", "price series file (.csv or .parquet)")
	fl.StringVar(&f.format, "format", "", "series format (csv, parquet); default by extension")
	fl.StringVarP(&f.instrument, "instrument", "i", "", "instrument label for journals")
	fl.StringVar(&f.from, "from", "", "first bar time to include (YYYY-MM-DD)")
	fl.StringVar(&f.to, "to", "", "bar time to stop before (YYYY-MM-DD, exclusive)")
	fl.StringVarP(&f.strategy, "strategy", "s", "", "strategy name (see 'tqbt strategies')")
	fl.StringArrayVarP(&f.params, "param", "p", nil, "strategy param override key=value (repeatable)")
	fl.Float64Var(&f.capital, "capital", 100_000, "initial capital")
	fl.Float64Var(&f.cost, "cost", 0.0005, "transaction cost rate per unit of position change")
	fl.IntVar(&f.periods, "periods", 252, "bars per year for annualization")
	fl.Float64Var(&f.riskFree, "risk-free", 0, "annual risk-free rate for the Sharpe ratio")
	fl.StringVar(&f.journal, "journal", "", "journal type (none, csv, sqlite)")
	fl.StringVar(&f.db, "db", "", "SQLite journal path (implies --journal sqlite)")
	fl.StringVar(&f.driver, "driver", "", "SQLite driver (sqlite3, sqlite)")
}

// apply copies the flags that were set onto c and revalidates it.
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) error {
	fl := cmd.Flags()
	set := func(name string, fn func()) {
		if fl.Changed(name) {
			fn()
		}
	}

	set("data", func() { c.Data.Path = f.data })
	set("format", func() { c.Data.Format = f.format })
	set("instrument", func() { c.Data.Instrument = f.instrument })
	set("from", func() { c.Data.From = f.from })
	set("to", func() { c.Data.To = f.to })
	set("strategy", func() { c.Strategy.Name = f.strategy })
	set("capital", func() { c.Backtest.InitialCapital = f.capital })
	set("cost", func() { c.Backtest.CostRate = f.cost })
	set("periods", func() { c.Metrics.PeriodsPerYear = f.periods })
	set("risk-free", func() { c.Metrics.RiskFreeRate = f.riskFree })
	set("journal", func() { c.Journal.Type = f.journal })
	set("db", func() {
		c.Journal.DBPath = f.db
		if !fl.Changed("journal") {
			c.Journal.Type = "sqlite"
		}
	})
	set("driver", func() { c.Journal.Driver = f.driver })

	if len(f.params) > 0 {
		p := c.Strategy.Params.Clone()
		for _, kv := range f.params {
			k, v, err := strategies.ParseParam(kv)
			if err != nil {
				return err
			}
			p[k] = v
		}
		c.Strategy.Params = p
	}

	if c.Data.Path == "" {
		return fmt.Errorf("no price data: pass --data or set data.path")
	}
	return c.Validate()
}

// loadSeries reads the configured series and applies the date window.
func loadSeries(d config.DataConfig) (market.Series, error) {
	s, err := market.Load(d.Path, d.Format)
	if err != nil {
		return nil, err
	}

	var from, to time.Time
	if d.From != "" {
		if from, err = market.ParseTime(d.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	}
	if d.To != "" {
		if to, err = market.ParseTime(d.To); err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
	}
	if !from.IsZero() || !to.IsZero() {
		s = s.Between(from, to)
	}
	return s, nil
}

// newJob builds the run described by c.
func newJob(c *config.Config) (runner.Job, error) {
	series, err := loadSeries(c.Data)
	if err != nil {
		return runner.Job{}, err
	}

	instrument := c.Data.Instrument
	if instrument == "" {
		instrument = instrumentFromPath(c.Data.Path)
	}

	logger.Debug().
		Str("data", c.Data.Path).
		Int("bars", len(series)).
		Str("strategy", c.Strategy.Name).
		Msg("series loaded")

	return runner.Job{
		Dataset:    filepath.Base(c.Data.Path),
		Instrument: instrument,
		Series:     series,
		Strategy:   c.Strategy.Name,
		Params:     c.Strategy.Params.Clone(),
		Backtest: backtest.Config{
			InitialCapital: c.Backtest.InitialCapital,
			CostRate:       c.Backtest.CostRate,
		},
		Metrics: metrics.Options{
			PeriodsPerYear: c.Metrics.PeriodsPerYear,
			RiskFreeRate:   c.Metrics.RiskFreeRate,
		},
	}, nil
}

// instrumentFromPath guesses a ticker from a file name like tqqq_daily.csv.
func instrumentFromPath(path string) string {
	base := filepath.Base(path)
	base = base[:len(base)-len(filepath.Ext(base))]
	for i, r := range base {
		if r == '_' || r == '-' || r == '.' {
			base = base[:i]
			break
		}
	}
	return strings.ToUpper(base)
}

// openJournal opens the configured journal; a nil journal means none.
func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		j, err := journal.NewCSV(jc.TradesFile, jc.EquityFile, jc.RunsFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLiteDriver(jc.Driver, jc.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}
	return nil, nil
}

// openSQLite opens the journal database for queries.
func openSQLite(path, driver string) (*journal.SQLite, error) {
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if driver == "" {
		driver = cfg.Journal.Driver
	}
	j, err := journal.NewSQLiteDriver(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}
