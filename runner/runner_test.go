package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/strategies"
)

func series(closes ...float64) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(market.Series, len(closes))
	for i, c := range closes {
		s[i] = market.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%03d", n.Add(1)) }
}

func holdJob(weight float64, closes ...float64) Job {
	return Job{
		Dataset:    "test.csv",
		Instrument: "TQQQ",
		Series:     series(closes...),
		Strategy:   "hold",
		Params:     strategies.Params{"weight": weight},
		Backtest:   backtest.Config{InitialCapital: 1000},
		Metrics:    metrics.DefaultOptions(),
	}
}

func newTestJournal(t *testing.T) *journal.SQLite {
	t.Helper()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRunHold(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	r := &Runner{Journal: j, Logger: zerolog.Nop(), NewID: seqIDs()}

	out, err := r.Run(context.Background(), holdJob(1, 100, 110, 121))
	require.NoError(t, err)

	assert.InDelta(t, 1210, out.Result.FinalEquity(), 1e-9)
	assert.InDelta(t, 0.21, out.Report.TotalReturn, 1e-12)
	require.Len(t, out.Result.Trades, 1)
	assert.Equal(t, backtest.ReasonEndOfSeries, out.Result.Trades[0].Reason)
	assert.Equal(t, strategies.Params{"weight": 1}, out.Params)

	rec, err := j.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "hold", rec.Strategy)
	assert.JSONEq(t, `{"weight":1}`, string(rec.Params))
	assert.Equal(t, 3, rec.Bars)
	assert.InDelta(t, 1210, rec.FinalEquity, 1e-9)
	assert.Equal(t, 252, rec.PeriodsPerYear)
	require.Len(t, rec.Monthly, 1)
	assert.InDelta(t, 0.21, rec.Monthly[0].Return, 1e-12)

	trades, err := j.ListTradesByRunID(out.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TQQQ", trades[0].Instrument)
	assert.InDelta(t, 210, trades[0].RealizedPL, 1e-9)

	equity, err := j.ListEquityByRunID(out.RunID)
	require.NoError(t, err)
	assert.Len(t, equity, 3)
}

func TestRunChecksContextFirst(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := newTestJournal(t)
	r := &Runner{Journal: j}
	_, err := r.Run(ctx, holdJob(1, 100, 101))
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := j.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(j *Job)
		is     error
		msg    string
	}{
		{"empty series", func(j *Job) { j.Series = nil }, nil, "series is required"},
		{"one bar", func(j *Job) { j.Series = j.Series[:1] }, backtest.ErrInsufficientData, ""},
		{"unknown strategy", func(j *Job) { j.Strategy = "nope" }, nil, "unknown strategy"},
		{"unknown param", func(j *Job) { j.Params = strategies.Params{"fast": 3} }, nil, "unknown param"},
		{"bad capital", func(j *Job) { j.Backtest.InitialCapital = 0 }, backtest.ErrInvalidParameter, ""},
		{"bad periods", func(j *Job) { j.Metrics.PeriodsPerYear = 0 }, backtest.ErrInvalidParameter, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := holdJob(1, 100, 101, 102)
			tt.mutate(&job)

			r := &Runner{}
			_, err := r.Run(context.Background(), job)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestRunCustomSourceWritesOrg(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "org")
	r := &Runner{OrgDir: dir, NewID: seqIDs()}

	job := holdJob(0, 100, 90, 99, 108.9)
	job.Strategy = "custom"
	job.Params = strategies.Params{"anything": 1}
	job.Source = strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		if len(req.History) >= 2 {
			return 1, nil
		}
		return 0, nil
	})

	out, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, strategies.Params{"anything": 1}, out.Params)
	assert.InDelta(t, 1210, out.Result.FinalEquity(), 1e-9)

	path := filepath.Join(dir, out.RunID+".org")
	assert.Equal(t, path, out.Record.OrgPath)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "* BACKTEST: custom TQQQ")
	assert.Contains(t, string(data), ":TRADE_ID:")
}

func TestRunRecordRuined(t *testing.T) {
	t.Parallel()

	r := &Runner{NewID: seqIDs()}
	out, err := r.Run(context.Background(), holdJob(3, 100, 60, 70))
	require.NoError(t, err)

	assert.True(t, out.Record.Ruined)
	assert.Zero(t, out.Record.FinalEquity)
	assert.Equal(t, []string{"ruined on 2024-01-02"}, out.Record.Notes)
	require.Len(t, out.Result.Trades, 1)
	assert.Equal(t, backtest.ReasonRuin, out.Result.Trades[0].Reason)
}

func TestSweep(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	r := &Runner{Journal: j, NewID: seqIDs()}

	jobs := SweepJobs(holdJob(1, 100, 105, 110, 120), map[string][]float64{"weight": {0.5, 1, 2}})
	outs, err := r.Sweep(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	for i, w := range []float64{0.5, 1, 2} {
		assert.Equal(t, w, outs[i].Params["weight"])
	}
	assert.Less(t, outs[0].Report.TotalReturn, outs[1].Report.TotalReturn)
	assert.Less(t, outs[1].Report.TotalReturn, outs[2].Report.TotalReturn)

	runs, err := j.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSweepStopsOnError(t *testing.T) {
	t.Parallel()

	good := holdJob(1, 100, 101, 102)
	bad := good
	bad.Strategy = "nope"

	r := &Runner{}
	outs, err := r.Sweep(context.Background(), []Job{good, bad, good}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
	require.Len(t, outs, 3)
	assert.NotNil(t, outs[0])
	assert.Nil(t, outs[1])
	assert.Nil(t, outs[2])
}

func TestSweepDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{}
	outs, err := r.Sweep(ctx, []Job{holdJob(1, 100, 101)}, 0)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, outs[0])
}

func TestSweepJobs(t *testing.T) {
	t.Parallel()

	base := holdJob(1, 100, 101)
	base.Strategy = "ma-cross"
	base.Params = strategies.Params{"fast": 3}

	jobs := SweepJobs(base, map[string][]float64{"slow": {10, 20}, "trend": {50}})
	require.Len(t, jobs, 2)
	assert.Equal(t, "ma-cross fast=3,slow=10,trend=50", jobs[0].Name)
	assert.Equal(t, strategies.Params{"fast": 3, "slow": 20, "trend": 50}, jobs[1].Params)
	assert.Equal(t, strategies.Params{"fast": 3}, base.Params)

	only := SweepJobs(base, nil)
	require.Len(t, only, 1)
	assert.Equal(t, "ma-cross fast=3", only[0].Name)
}
