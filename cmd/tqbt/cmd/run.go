package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest",
	Long: `Run one strategy over a price series and print the result.

The strategy decides a target position for each bar from past bars only.
Position changes pay --cost times the traded fraction of equity.

Examples:
  tqbt run --data data/tqqq.csv --strategy ma-cross
  tqbt run -d data/soxl.parquet -s score -p min_score=5 --from 2020-01-01 --db runs.db --org-dir org/`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	runOpts   runFlags
	runOrgDir string
	runCSVOut string
	runJSON   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	addRunFlags(runCmd, &runOpts)
	runCmd.Flags().StringVar(&runOrgDir, "org-dir", "", "write an Org-mode report per run into this directory")
	runCmd.Flags().StringVar(&runCSVOut, "csv-out", "", "write the metrics report as CSV to this file")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the metrics report as JSON instead of text")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if err := runOpts.apply(cmd, cfg); err != nil {
		return err
	}

	job, err := newJob(cfg)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
	}

	r := &runner.Runner{Journal: j, Logger: logger, OrgDir: runOrgDir}
	out, err := r.Run(cmd.Context(), job)
	if err != nil {
		return err
	}

	if runCSVOut != "" {
		if err := writeReportCSV(runCSVOut, out.Report); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Report)
	}
	journal.PrintRun(w, out.Record)
	return nil
}

func writeReportCSV(path string, reports ...metrics.Report) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := metrics.WriteCSV(fh, reports...); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
