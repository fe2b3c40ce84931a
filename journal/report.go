package journal

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const rule = "--------------------------------------------------"

// PrintRun writes a human readable run summary to w.
func PrintRun(w io.Writer, r RunRecord) {
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Created:       %s\n", r.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	if len(r.Params) > 0 {
		fmt.Fprintf(w, "Params:        %s\n", r.Params)
	}
	if r.Instrument != "" {
		fmt.Fprintf(w, "Instrument:    %s\n", r.Instrument)
	}
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	section(w, "Period")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	section(w, "Trade Statistics")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate*100)
	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}

	section(w, "Performance")
	fmt.Fprintf(w, "Start Equity:  %.2f\n", r.InitialCapital)
	fmt.Fprintf(w, "End Equity:    %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.NetPL())
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.TotalReturn*100)
	fmt.Fprintf(w, "Annualized:    %.2f%%\n", r.AnnualizedReturn*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(w, "Total Cost:    %.2f\n", r.TotalCost)
	if r.Ruined {
		fmt.Fprintln(w, "Ruined:        yes")
	}

	if len(r.Monthly) > 0 {
		section(w, "Monthly Returns")
		for _, m := range r.Monthly {
			fmt.Fprintf(w, "%d-%02d:       %7.2f%%\n", m.Year, m.Month, m.Return*100)
		}
		fmt.Fprintf(w, "Best:          %.2f%%\n", r.BestMonth*100)
		fmt.Fprintf(w, "Worst:         %.2f%%\n", r.WorstMonth*100)
	}

	if r.OrgPath != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Org Report:    %s\n", r.OrgPath)
	}

	if len(r.Notes) > 0 {
		section(w, "Observations")
		for _, note := range r.Notes {
			fmt.Fprintf(w, "- %s\n", note)
		}
	}

	fmt.Fprintln(w)
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}
