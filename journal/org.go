package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in a PROPERTIES drawer so they stay searchable.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s (%s)", t.Instrument, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":SIZE: %.4f\n", t.Size)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.4f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.4f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", open)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", close)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

var runOrgFuncs = template.FuncMap{
	"pct": func(x float64) string { return fmt.Sprintf("%.2f%%", x*100) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"orUnset": func(s string) string {
		if s == "" {
			return "(unset)"
		}
		return s
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// FormatRunOrg renders a run summary, its monthly returns and trades as an
// Org-mode document.
func FormatRunOrg(r RunRecord, trades []TradeRecord) (string, error) {
	buf := new(bytes.Buffer)
	err := runOrg.Execute(buf, struct {
		RunRecord
		TradesOrg string
	}{r, FormatTradesOrg(trades)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteRunOrg writes FormatRunOrg output to r.OrgPath.
func WriteRunOrg(r RunRecord, trades []TradeRecord) error {
	if r.OrgPath == "" {
		return fmt.Errorf("run %s: org path is empty", r.RunID)
	}
	doc, err := FormatRunOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(r.OrgPath, []byte(doc), 0o644)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Instrument}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:INSTRUMENT:  {{orUnset .Instrument}}
:DATASET:     {{orUnset .Dataset}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:BARS:        {{.Bars}}
:START_EQ:    {{printf "%.2f" .InitialCapital}}
:END_EQ:      {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN:      {{pct .TotalReturn}}
:CAGR:        {{pct .AnnualizedReturn}}
:SHARPE:      {{printf "%.3f" .SharpeRatio}}
:MAX_DD:      {{pct .MaxDrawdown}}
:TRADES:      {{.Trades}}
:WIN_RATE:    {{pct .WinRate}}
:RUINED:      {{.Ruined}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
- Params:      {{printf "%s" .Params}}
- Cost rate:   {{printf "%.6f" .CostRate}}
- Periods/yr:  {{.PeriodsPerYear}}
- Risk free:   {{pct .RiskFreeRate}}

** Performance Summary
- Net P/L:        *{{printf "%.2f" .NetPL}}*
- Return:         *{{pct .TotalReturn}}*
- Annualized:     *{{pct .AnnualizedReturn}}*
- Sharpe:         *{{printf "%.3f" .SharpeRatio}}*
- Max Drawdown:   *{{pct .MaxDrawdown}}*
- Win Rate:       *{{pct .WinRate}}*
- Profit Factor:  *{{printf "%.2f" .ProfitFactor}}*
- Total Cost:     *{{printf "%.2f" .TotalCost}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .Monthly }}

** Monthly Returns
| Month   | Return |
|---------+--------|
{{- range .Monthly }}
| {{.Year}}-{{printf "%02d" .Month}} | {{pct .Return}} |
{{- end }}
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
{{- if .TradesOrg }}

* Trades
{{.TradesOrg}}
{{- end }}
`
