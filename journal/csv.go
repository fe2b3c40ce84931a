package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader  = []string{"run_id", "trade_id", "instrument", "size", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"}
	equityHeader = []string{"run_id", "time", "equity", "position", "cost", "close"}
	runHeader    = []string{
		"run_id", "created", "strategy", "params", "dataset", "instrument", "start", "end", "bars",
		"initial_capital", "cost_rate", "final_equity", "total_return", "annualized_return",
		"sharpe_ratio", "max_drawdown", "win_rate", "trades", "total_cost", "ruined",
	}
)

// CSVJournal appends trades, equity points and (optionally) run summaries
// to CSV files, one writer per file.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

// NewCSV creates the trade and equity files. runsPath may be empty, in
// which case run summaries are dropped.
func NewCSV(tradesPath, equityPath, runsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}

	var err error
	if j.trades, err = j.create(tradesPath, tradeHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.equity, err = j.create(equityPath, equityHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if runsPath != "" {
		if j.runs, err = j.create(runsPath, runHeader); err != nil {
			j.closeFiles()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) create(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	if j.runs == nil {
		return nil
	}
	return write(j.runs, []string{
		r.RunID,
		r.Created.UTC().Format(time.RFC3339),
		r.Strategy,
		string(r.Params),
		r.Dataset,
		r.Instrument,
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		strconv.Itoa(r.Bars),
		f(r.InitialCapital),
		f(r.CostRate),
		f(r.FinalEquity),
		f(r.TotalReturn),
		f(r.AnnualizedReturn),
		f(r.SharpeRatio),
		f(r.MaxDrawdown),
		f(r.WinRate),
		strconv.Itoa(r.Trades),
		f(r.TotalCost),
		strconv.FormatBool(r.Ruined),
	})
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.RunID,
		t.TradeID,
		t.Instrument,
		f(t.Size),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.Position),
		f(e.Cost),
		f(e.Close),
	})
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{j.trades, j.equity, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		errs = append(errs, w.Error())
	}
	errs = append(errs, j.closeFiles())
	return errors.Join(errs...)
}

func (j *CSVJournal) closeFiles() error {
	var errs []error
	for _, fh := range j.files {
		errs = append(errs, fh.Close())
	}
	j.files = nil
	return errors.Join(errs...)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
