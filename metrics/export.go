package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the column order of Record. The required metrics come first;
// the order never changes between releases.
func Header() []string {
	return []string{
		"total_return",
		"annualized_return",
		"sharpe_ratio",
		"max_drawdown",
		"win_rate",
		"trade_count",
		"monthly_returns",
		"start",
		"end",
		"periods",
		"initial_equity",
		"final_equity",
		"wins",
		"losses",
		"profit_factor",
		"best_month",
		"worst_month",
		"avg_month",
		"monthly_std",
		"ruined",
	}
}

// Record renders the report in Header order. Ratios carry 6 decimals and
// money 2; monthly returns are "YYYY-MM:ret" pairs joined by ';'.
func (r Report) Record() []string {
	months := make([]string, len(r.MonthlyReturns))
	for i, m := range r.MonthlyReturns {
		months[i] = fmt.Sprintf("%04d-%02d:%s", m.Year, int(m.Month), ratio(m.Return))
	}

	return []string{
		ratio(r.TotalReturn),
		ratio(r.AnnualizedReturn),
		ratio(r.SharpeRatio),
		ratio(r.MaxDrawdown),
		ratio(r.WinRate),
		strconv.Itoa(r.TradeCount),
		strings.Join(months, ";"),
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		strconv.Itoa(r.Periods),
		money(r.InitialEquity),
		money(r.FinalEquity),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		ratio(r.ProfitFactor),
		ratio(r.BestMonth),
		ratio(r.WorstMonth),
		ratio(r.AvgMonth),
		ratio(r.MonthlyStd),
		strconv.FormatBool(r.Ruined),
	}
}

// MonthlyHeader is the column order of MonthlyRecords.
func MonthlyHeader() []string {
	return []string{"year", "month", "return"}
}

func (r Report) MonthlyRecords() [][]string {
	out := make([][]string, len(r.MonthlyReturns))
	for i, m := range r.MonthlyReturns {
		out[i] = []string{strconv.Itoa(m.Year), fmt.Sprintf("%02d", int(m.Month)), ratio(m.Return)}
	}
	return out
}

// WriteCSV writes a header and one row per report.
func WriteCSV(w io.Writer, reports ...Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range reports {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ratio(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(6)
}

func money(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2)
}
