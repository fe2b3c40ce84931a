package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/runner"
	"github.com/rustyeddy/backtester/strategies"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a strategy over a grid of parameters in parallel",
	Long: `Expand --grid axes into every parameter combination, run them in
parallel and print the runs ranked best first.

Examples:
  tqbt sweep -d data/tqqq.csv -s ma-cross --grid fast=2,3,5 --grid slow=7,10,20
  tqbt sweep -d data/tqqq.csv -s score --grid atr_multiplier=2.5,3,3.5 --workers 8 --metrics-file sweep.csv`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var (
	sweepOpts        runFlags
	sweepGrid        []string
	sweepWorkers     int
	sweepMetricsFile string
	sweepPromFile    string
	sweepRank        string
	sweepTop         int
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	addRunFlags(sweepCmd, &sweepOpts)
	sweepCmd.Flags().StringArrayVarP(&sweepGrid, "grid", "g", nil, "grid axis key=v1,v2,... (repeatable)")
	sweepCmd.Flags().IntVarP(&sweepWorkers, "workers", "w", 0, "parallel runs (default sweep.workers, 0 = NumCPU)")
	sweepCmd.Flags().StringVar(&sweepMetricsFile, "metrics-file", "", "write every run's metrics report as CSV")
	sweepCmd.Flags().StringVar(&sweepPromFile, "prom-file", "", "write Prometheus run counters in textfile format")
	sweepCmd.Flags().StringVar(&sweepRank, "rank", "sharpe", fmt.Sprintf("rank by %v", runner.RankKeys))
	sweepCmd.Flags().IntVar(&sweepTop, "top", 20, "rows to print (0 = all)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := sweepOpts.apply(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Sweep.Workers = sweepWorkers
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.Sweep.MetricsFile = sweepMetricsFile
	}

	grid := make(map[string][]float64, len(cfg.Sweep.Grid))
	for k, v := range cfg.Sweep.Grid {
		grid[k] = v
	}
	for _, axis := range sweepGrid {
		k, vals, err := strategies.ParseGrid(axis)
		if err != nil {
			return err
		}
		grid[k] = vals
	}

	base, err := newJob(cfg)
	if err != nil {
		return err
	}
	jobs := runner.SweepJobs(base, grid)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	collector := runner.NewCollector(nil)
	r := &runner.Runner{Journal: j, Logger: logger, Collector: collector}

	logger.Info().Int("jobs", len(jobs)).Int("workers", cfg.Sweep.Workers).Msg("sweep starting")
	outs, err := r.Sweep(cmd.Context(), jobs, cfg.Sweep.Workers)
	if err != nil {
		return err
	}

	if err := runner.Rank(outs, sweepRank); err != nil {
		return err
	}

	if cfg.Sweep.MetricsFile != "" {
		if err := writeSweepCSV(cfg.Sweep.MetricsFile, outs); err != nil {
			return err
		}
	}
	if sweepPromFile != "" {
		if err := collector.WriteTextfile(sweepPromFile); err != nil {
			return err
		}
	}

	printSweep(cmd.OutOrStdout(), outs, sweepTop)
	return nil
}

func printSweep(w io.Writer, outs []*runner.Outcome, top int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tRETURN\tCAGR\tSHARPE\tMAX DD\tWIN\tTRADES\tRUINED\tPARAMS\t")
	for i, o := range outs {
		if top > 0 && i >= top {
			break
		}
		rep := o.Report
		fmt.Fprintf(tw, "%d\t%.2f%%\t%.2f%%\t%.3f\t%.2f%%\t%.1f%%\t%d\t%t\t%s\t\n",
			i+1,
			rep.TotalReturn*100,
			rep.AnnualizedReturn*100,
			rep.SharpeRatio,
			rep.MaxDrawdown*100,
			rep.WinRate*100,
			rep.TradeCount,
			rep.Ruined,
			o.Params.String(),
		)
	}
	tw.Flush()
}

func writeSweepCSV(path string, outs []*runner.Outcome) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeSweepRows(fh, outs); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}

// writeSweepRows writes a header and one row per outcome, stopping at the
// first failed row.
func writeSweepRows(w io.Writer, outs []*runner.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"run_id", "strategy", "params"}, metrics.Header()...)); err != nil {
		return err
	}
	for _, o := range outs {
		if o == nil {
			continue
		}
		if err := cw.Write(append([]string{o.RunID, o.Job.Strategy, o.Params.String()}, o.Report.Record()...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
