// Package runner binds a series, a strategy and run configuration together,
// runs the simulator and metrics engine, and journals the outcome.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/strategies"
)

// Job is one backtest to run.
type Job struct {
	Name       string
	Dataset    string
	Instrument string
	Series     market.Series

	// Strategy is looked up in the strategy registry unless Source is set,
	// in which case Params are passed through unmerged.
	Strategy string
	Source   strategies.SignalSource
	Params   strategies.Params

	Backtest backtest.Config
	Metrics  metrics.Options
}

func (j Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Strategy
}

func (j Job) source() (strategies.SignalSource, strategies.Params, error) {
	if j.Source != nil {
		return j.Source, j.Params.Clone(), nil
	}
	return strategies.Build(j.Strategy, j.Params)
}

// Outcome is a finished job.
type Outcome struct {
	RunID   string
	Job     Job
	Params  strategies.Params
	Result  *backtest.Result
	Report  metrics.Report
	Record  journal.RunRecord
	Elapsed time.Duration
}

// Runner executes jobs. The zero value runs without journal, metrics or
// logging.
type Runner struct {
	Journal   journal.Journal
	Logger    zerolog.Logger
	Collector *Collector

	// OrgDir, when set, receives one Org-mode report per run.
	OrgDir string

	// NewID names runs and trades. Defaults to id.New.
	NewID func() string

	mu sync.Mutex
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return id.New()
}

// Run executes a single job. The context is checked before starting; a run
// in progress is never interrupted.
func (r *Runner) Run(ctx context.Context, job Job) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(job.Series) == 0 {
		return nil, fmt.Errorf("runner: job %s: series is required", job.label())
	}

	src, params, err := job.source()
	if err != nil {
		r.Collector.fail(job.Strategy)
		return nil, err
	}

	cfg := job.Backtest
	cfg.Params = params
	if cfg.NewID == nil {
		cfg.NewID = r.newID
	}

	start := time.Now()
	res, err := backtest.Run(job.Series, src, cfg)
	if err != nil {
		r.Collector.fail(job.Strategy)
		return nil, fmt.Errorf("job %s: %w", job.label(), err)
	}
	rep, err := metrics.Compute(res.Trajectory, res.Trades, job.Metrics)
	if err != nil {
		r.Collector.fail(job.Strategy)
		return nil, fmt.Errorf("job %s: %w", job.label(), err)
	}

	out := &Outcome{
		RunID:   r.newID(),
		Job:     job,
		Params:  params,
		Result:  res,
		Report:  rep,
		Elapsed: time.Since(start),
	}
	out.Record = RunRecord(out, time.Now())

	r.Logger.Info().
		Str("run_id", out.RunID).
		Str("strategy", job.Strategy).
		Str("params", params.String()).
		Int("bars", len(job.Series)).
		Int("trades", rep.TradeCount).
		Float64("total_return", rep.TotalReturn).
		Float64("sharpe", rep.SharpeRatio).
		Float64("max_drawdown", rep.MaxDrawdown).
		Bool("ruined", rep.Ruined).
		Dur("elapsed", out.Elapsed).
		Msg("backtest complete")

	if err := r.persist(out); err != nil {
		r.Collector.fail(job.Strategy)
		return nil, err
	}

	r.Collector.observe(out)
	return out, nil
}

func (r *Runner) persist(out *Outcome) error {
	if r.OrgDir != "" {
		if err := os.MkdirAll(r.OrgDir, 0o755); err != nil {
			return err
		}
		out.Record.OrgPath = filepath.Join(r.OrgDir, out.RunID+".org")
	}

	trades := TradeRecords(out)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Journal != nil {
		b := journal.Batch{Run: out.Record, Trades: trades, Equity: EquitySnapshots(out)}
		if err := journal.Write(r.Journal, b); err != nil {
			return fmt.Errorf("journal run %s: %w", out.RunID, err)
		}
		r.Logger.Debug().Str("run_id", out.RunID).Int("trades", len(trades)).Msg("run journaled")
	}
	if out.Record.OrgPath != "" {
		if err := journal.WriteRunOrg(out.Record, trades); err != nil {
			return fmt.Errorf("org report %s: %w", out.RunID, err)
		}
	}
	return nil
}

// Sweep runs jobs with at most workers in flight (NumCPU when workers <= 0).
// Outcomes keep job order. The first failure cancels jobs not yet started
// and is returned; outcomes of jobs that finished are still returned.
func (r *Runner) Sweep(ctx context.Context, jobs []Job, workers int) ([]*Outcome, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]*Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			o, err := r.Run(gctx, job)
			if err != nil {
				return err
			}
			out[i] = o
			return nil
		})
	}

	err := g.Wait()
	r.Logger.Info().Int("jobs", len(jobs)).Int("workers", workers).Err(err).Msg("sweep complete")
	return out, err
}

// SweepJobs expands grid over base.Params, one job per parameter set.
func SweepJobs(base Job, grid map[string][]float64) []Job {
	sets := strategies.Expand(base.Params, grid)
	jobs := make([]Job, 0, len(sets))
	for _, p := range sets {
		job := base
		job.Params = p
		job.Name = base.label()
		if s := p.String(); s != "" {
			job.Name += " " + s
		}
		jobs = append(jobs, job)
	}
	return jobs
}
