package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journaled runs and trades",
	Long: `Query and display backtest runs recorded in a SQLite journal.

Subcommands:
  runs   - List recent runs
  show   - Print a run summary
  trades - Print a run's trades as Org-mode
  day    - Print trades closed on a specific day
  org    - Render a full Org-mode report of a run

Examples:
  tqbt journal runs --db runs.db
  tqbt journal show 01HZX3...
  tqbt journal org 01HZX3... -o reports/run.org`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "Print a run's trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day (UTC)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalOrgCmd = &cobra.Command{
	Use:   "org <run-id>",
	Short: "Render an Org-mode report of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrg,
}

var (
	journalDBPath string
	journalDriver string
	journalLimit  int
	journalOrgOut string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalOrgCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "", "path to SQLite journal DB (default journal.db_path)")
	journalCmd.PersistentFlags().StringVar(&journalDriver, "driver", "", "SQLite driver (sqlite3, sqlite)")
	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "runs to list (0 = all)")
	journalOrgCmd.Flags().StringVarP(&journalOrgOut, "output", "o", "", "write the report to this file instead of stdout")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openSQLite(journalDBPath, journalDriver)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(journalLimit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSTRATEGY\tDATASET\tRETURN\tSHARPE\tMAX DD\tTRADES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f%%\t%.3f\t%.2f%%\t%d\n",
			r.RunID,
			r.Created.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.Dataset,
			r.TotalReturn*100,
			r.SharpeRatio,
			r.MaxDrawdown*100,
			r.Trades,
		)
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openSQLite(journalDBPath, journalDriver)
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	journal.PrintRun(cmd.OutOrStdout(), rec)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openSQLite(journalDBPath, journalDriver)
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTradesByRunID(args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := openSQLite(journalDBPath, journalDriver)
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.UTC, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalOrg(cmd *cobra.Command, args []string) error {
	j, err := openSQLite(journalDBPath, journalDriver)
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTradesByRunID(rec.RunID)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	doc, err := journal.FormatRunOrg(rec, trades)
	if err != nil {
		return err
	}
	if journalOrgOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), doc)
		return nil
	}
	return os.WriteFile(journalOrgOut, []byte(doc), 0o644)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
