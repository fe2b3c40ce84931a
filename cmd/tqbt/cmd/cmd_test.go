package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/runner"
	"github.com/rustyeddy/backtester/strategies"
)

// Commands share package-level flag state, so these tests do not run in
// parallel and reset every flag before each execution.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSeries(t *testing.T, dir string, n int) string {
	t.Helper()

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(market.Series, n)
	for i := range s {
		c := 50 + 10*math.Sin(float64(i)/6) + float64(i)*0.2
		s[i] = market.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}

	path := filepath.Join(dir, "tqqq_daily.csv")
	require.NoError(t, market.Save(path, "", s))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tqbt version "+version+"\n", out)
}

func TestGlobalLogFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TQBT_LOG_LEVEL", "")

	_, err := execute(t, "--log-level", "debug", "--log-format", "json", "version")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	_, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestStrategiesList(t *testing.T) {
	out, err := execute(t, "strategies")
	require.NoError(t, err)
	for _, name := range []string{"flat", "hold", "ma-threshold", "ma-cross", "score"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "defaults: weight=1")
}

func TestRunRequiresData(t *testing.T) {
	_, err := execute(t, "run", "--strategy", "hold")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price data")
}

func TestRunAndQueryJournal(t *testing.T) {
	dir := t.TempDir()
	data := writeSeries(t, dir, 80)
	db := filepath.Join(dir, "runs.db")
	orgDir := filepath.Join(dir, "org")

	out, err := execute(t, "run", "--data", data, "--strategy", "ma-cross", "--param", "slow=10",
		"--capital", "1000", "--db", db, "--org-dir", orgDir)
	require.NoError(t, err)
	assert.Contains(t, out, " Backtest Result")
	assert.Contains(t, out, "Strategy:      ma-cross")
	assert.Contains(t, out, "Instrument:    TQQQ")
	assert.Contains(t, out, "Bars:          80")

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	runs, err := j.ListRuns(0)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.Len(t, runs, 1)
	runID := runs[0].RunID
	assert.Contains(t, string(runs[0].Params), `"slow":10`)

	_, err = os.Stat(filepath.Join(orgDir, runID+".org"))
	assert.NoError(t, err)

	out, err = execute(t, "journal", "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, runID)

	out, err = execute(t, "journal", "show", runID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run ID:        "+runID)

	orgOut := filepath.Join(dir, "report.org")
	_, err = execute(t, "journal", "org", runID, "--db", db, "-o", orgOut)
	require.NoError(t, err)
	doc, err := os.ReadFile(orgOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "* BACKTEST: ma-cross TQQQ"))

	_, err = execute(t, "journal", "show", "missing", "--db", db)
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	data := writeSeries(t, dir, 30)
	csvOut := filepath.Join(dir, "report.csv")

	out, err := execute(t, "run", "-d", data, "-s", "hold", "--cost", "0", "--json", "--csv-out", csvOut)
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Contains(t, rep, "sharpe_ratio")
	assert.EqualValues(t, 1, rep["trade_count"])

	report, err := os.ReadFile(csvOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(report), "total_return,annualized_return,sharpe_ratio"))
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeSeries(t, dir, 40)
	metricsFile := filepath.Join(dir, "sweep.csv")
	promFile := filepath.Join(dir, "sweep.prom")

	out, err := execute(t, "sweep", "-d", data, "-s", "hold", "--grid", "weight=0.5,1,2",
		"--workers", "2", "--metrics-file", metricsFile, "--prom-file", promFile, "--rank", "return")
	require.NoError(t, err)
	assert.Contains(t, out, "weight=0.5")
	assert.Contains(t, out, "weight=2")

	lines := strings.Split(strings.TrimSpace(func() string {
		b, err := os.ReadFile(metricsFile)
		require.NoError(t, err)
		return string(b)
	}()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "run_id,strategy,params,total_return"))

	prom, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tqbt_runs_total{result="ok",strategy="hold"} 3`)

	_, err = execute(t, "sweep", "-d", data, "-s", "hold", "--grid", "weight=")
	assert.Error(t, err)
}

func TestDataInfoAndConvert(t *testing.T) {
	dir := t.TempDir()
	data := writeSeries(t, dir, 25)
	pq := filepath.Join(dir, "tqqq.parquet")

	out, err := execute(t, "data", "convert", data, pq, "--from", "2023-01-06")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 21 bars")

	out, err = execute(t, "data", "info", pq)
	require.NoError(t, err)
	assert.Contains(t, out, "Bars:          21")
	assert.Contains(t, out, "Start:         2023-01-06T00:00:00Z")
}

func TestConfigInitCheckShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tqbt.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy  ma-cross")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name: ma-cross")

	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  name: nope\n"), 0o644))
	_, err = execute(t, "config", "validate", path)
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestInstrumentFromPath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"data/tqqq.csv", "TQQQ"},
		{"/x/soxl_daily.parquet", "SOXL"},
		{"upro-2020.csv", "UPRO"},
		{"spy", "SPY"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, instrumentFromPath(tt.path), tt.path)
	}
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errDiskFull
}

func sweepOutcomes(n int) []*runner.Outcome {
	outs := make([]*runner.Outcome, n)
	for i := range outs {
		outs[i] = &runner.Outcome{
			RunID:  fmt.Sprintf("01HRUN%020d", i),
			Job:    runner.Job{Strategy: "ma-cross"},
			Params: strategies.Params{"fast": float64(i), "slow": 20},
			Report: metrics.Report{TotalReturn: 0.1, SharpeRatio: 1.2, TradeCount: i},
		}
	}
	return outs
}

func TestWriteSweepRows(t *testing.T) {
	outs := sweepOutcomes(2)
	outs = append(outs, nil)

	var buf bytes.Buffer
	require.NoError(t, writeSweepRows(&buf, outs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "run_id,strategy,params,total_return,"))
	assert.True(t, strings.HasPrefix(lines[1], outs[0].RunID+",ma-cross,"))
}

func TestWriteSweepRowsStopsOnWriteError(t *testing.T) {
	w := &failingWriter{}
	err := writeSweepRows(w, sweepOutcomes(200))
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, w.calls)

	err = writeSweepCSV(filepath.Join(t.TempDir(), "missing", "sweep.csv"), sweepOutcomes(1))
	assert.ErrorContains(t, err, "create")
}
