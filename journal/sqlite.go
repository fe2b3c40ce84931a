package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by NewSQLiteDriver.
const (
	DriverCGO  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// timeLayout is RFC3339 with fixed nanoseconds so stored UTC values sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) a journal database with the cgo driver.
func NewSQLite(path string) (*SQLite, error) {
	return NewSQLiteDriver(DriverCGO, path)
}

// NewSQLiteDriver opens a journal database with the named driver and
// ensures the schema exists.
func NewSQLiteDriver(driver, path string) (*SQLite, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q (%s, %s)", driver, DriverCGO, DriverPure)
	}

	db, err := sqlx.Open(driver, path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

type runRow struct {
	RunID            string  `db:"run_id"`
	Created          string  `db:"created"`
	Strategy         string  `db:"strategy"`
	Params           string  `db:"params"`
	Dataset          string  `db:"dataset"`
	Instrument       string  `db:"instrument"`
	Start            string  `db:"start_time"`
	End              string  `db:"end_time"`
	Bars             int     `db:"bars"`
	InitialCapital   float64 `db:"initial_capital"`
	CostRate         float64 `db:"cost_rate"`
	PeriodsPerYear   int     `db:"periods_per_year"`
	RiskFreeRate     float64 `db:"risk_free_rate"`
	FinalEquity      float64 `db:"final_equity"`
	TotalReturn      float64 `db:"total_return"`
	AnnualizedReturn float64 `db:"annualized_return"`
	SharpeRatio      float64 `db:"sharpe_ratio"`
	MaxDrawdown      float64 `db:"max_drawdown"`
	WinRate          float64 `db:"win_rate"`
	Trades           int     `db:"trades"`
	Wins             int     `db:"wins"`
	Losses           int     `db:"losses"`
	ProfitFactor     float64 `db:"profit_factor"`
	BestMonth        float64 `db:"best_month"`
	WorstMonth       float64 `db:"worst_month"`
	AvgMonth         float64 `db:"avg_month"`
	MonthlyStd       float64 `db:"monthly_std"`
	TotalCost        float64 `db:"total_cost"`
	Ruined           bool    `db:"ruined"`
	OrgPath          string  `db:"org_path"`
	Notes            string  `db:"notes"`
}

type tradeRow struct {
	TradeID    string  `db:"trade_id"`
	RunID      string  `db:"run_id"`
	Instrument string  `db:"instrument"`
	Size       float64 `db:"size"`
	EntryPrice float64 `db:"entry_price"`
	ExitPrice  float64 `db:"exit_price"`
	OpenTime   string  `db:"open_time"`
	CloseTime  string  `db:"close_time"`
	RealizedPL float64 `db:"realized_pl"`
	Reason     string  `db:"reason"`
}

type equityRow struct {
	RunID    string  `db:"run_id"`
	Time     string  `db:"time"`
	Equity   float64 `db:"equity"`
	Position float64 `db:"position"`
	Cost     float64 `db:"cost"`
	Close    float64 `db:"close"`
}

type monthlyRow struct {
	RunID  string  `db:"run_id"`
	Year   int     `db:"year"`
	Month  int     `db:"month"`
	Return float64 `db:"ret"`
}

const (
	insertRun = `
		INSERT INTO runs
		(run_id, created, strategy, params, dataset, instrument, start_time, end_time, bars,
		 initial_capital, cost_rate, periods_per_year, risk_free_rate, final_equity,
		 total_return, annualized_return, sharpe_ratio, max_drawdown, win_rate,
		 trades, wins, losses, profit_factor, best_month, worst_month, avg_month, monthly_std,
		 total_cost, ruined, org_path, notes)
		VALUES
		(:run_id, :created, :strategy, :params, :dataset, :instrument, :start_time, :end_time, :bars,
		 :initial_capital, :cost_rate, :periods_per_year, :risk_free_rate, :final_equity,
		 :total_return, :annualized_return, :sharpe_ratio, :max_drawdown, :win_rate,
		 :trades, :wins, :losses, :profit_factor, :best_month, :worst_month, :avg_month, :monthly_std,
		 :total_cost, :ruined, :org_path, :notes)`

	insertMonthly = `
		INSERT INTO monthly_returns (run_id, year, month, ret)
		VALUES (:run_id, :year, :month, :ret)`

	insertTrade = `
		INSERT INTO trades
		(trade_id, run_id, instrument, size, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES
		(:trade_id, :run_id, :instrument, :size, :entry_price, :exit_price, :open_time, :close_time, :realized_pl, :reason)`

	insertEquity = `
		INSERT INTO equity (run_id, time, equity, position, cost, close)
		VALUES (:run_id, :time, :equity, :position, :cost, :close)`
)

func toRunRow(r RunRecord) runRow {
	params := string(r.Params)
	if params == "" {
		params = "{}"
	}
	return runRow{
		RunID:            r.RunID,
		Created:          formatTime(r.Created),
		Strategy:         r.Strategy,
		Params:           params,
		Dataset:          r.Dataset,
		Instrument:       r.Instrument,
		Start:            formatTime(r.Start),
		End:              formatTime(r.End),
		Bars:             r.Bars,
		InitialCapital:   r.InitialCapital,
		CostRate:         r.CostRate,
		PeriodsPerYear:   r.PeriodsPerYear,
		RiskFreeRate:     r.RiskFreeRate,
		FinalEquity:      r.FinalEquity,
		TotalReturn:      r.TotalReturn,
		AnnualizedReturn: r.AnnualizedReturn,
		SharpeRatio:      r.SharpeRatio,
		MaxDrawdown:      r.MaxDrawdown,
		WinRate:          r.WinRate,
		Trades:           r.Trades,
		Wins:             r.Wins,
		Losses:           r.Losses,
		ProfitFactor:     r.ProfitFactor,
		BestMonth:        r.BestMonth,
		WorstMonth:       r.WorstMonth,
		AvgMonth:         r.AvgMonth,
		MonthlyStd:       r.MonthlyStd,
		TotalCost:        r.TotalCost,
		Ruined:           r.Ruined,
		OrgPath:          r.OrgPath,
		Notes:            strings.Join(r.Notes, "\n"),
	}
}

func (row runRow) record() (RunRecord, error) {
	r := RunRecord{
		RunID:            row.RunID,
		Strategy:         row.Strategy,
		Params:           []byte(row.Params),
		Dataset:          row.Dataset,
		Instrument:       row.Instrument,
		Bars:             row.Bars,
		InitialCapital:   row.InitialCapital,
		CostRate:         row.CostRate,
		PeriodsPerYear:   row.PeriodsPerYear,
		RiskFreeRate:     row.RiskFreeRate,
		FinalEquity:      row.FinalEquity,
		TotalReturn:      row.TotalReturn,
		AnnualizedReturn: row.AnnualizedReturn,
		SharpeRatio:      row.SharpeRatio,
		MaxDrawdown:      row.MaxDrawdown,
		WinRate:          row.WinRate,
		Trades:           row.Trades,
		Wins:             row.Wins,
		Losses:           row.Losses,
		ProfitFactor:     row.ProfitFactor,
		BestMonth:        row.BestMonth,
		WorstMonth:       row.WorstMonth,
		AvgMonth:         row.AvgMonth,
		MonthlyStd:       row.MonthlyStd,
		TotalCost:        row.TotalCost,
		Ruined:           row.Ruined,
		OrgPath:          row.OrgPath,
	}
	if row.Notes != "" {
		r.Notes = strings.Split(row.Notes, "\n")
	}

	var err error
	if r.Created, err = parseTime(row.Created); err != nil {
		return r, fmt.Errorf("run %s created: %w", row.RunID, err)
	}
	if r.Start, err = parseTime(row.Start); err != nil {
		return r, fmt.Errorf("run %s start: %w", row.RunID, err)
	}
	if r.End, err = parseTime(row.End); err != nil {
		return r, fmt.Errorf("run %s end: %w", row.RunID, err)
	}
	return r, nil
}

func toTradeRow(t TradeRecord) tradeRow {
	return tradeRow{
		TradeID:    t.TradeID,
		RunID:      t.RunID,
		Instrument: t.Instrument,
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		OpenTime:   formatTime(t.OpenTime),
		CloseTime:  formatTime(t.CloseTime),
		RealizedPL: t.RealizedPL,
		Reason:     t.Reason,
	}
}

func (row tradeRow) record() (TradeRecord, error) {
	t := TradeRecord{
		RunID:      row.RunID,
		TradeID:    row.TradeID,
		Instrument: row.Instrument,
		Size:       row.Size,
		EntryPrice: row.EntryPrice,
		ExitPrice:  row.ExitPrice,
		RealizedPL: row.RealizedPL,
		Reason:     row.Reason,
	}
	var err error
	if t.OpenTime, err = parseTime(row.OpenTime); err != nil {
		return t, fmt.Errorf("trade %s open_time: %w", row.TradeID, err)
	}
	if t.CloseTime, err = parseTime(row.CloseTime); err != nil {
		return t, fmt.Errorf("trade %s close_time: %w", row.TradeID, err)
	}
	return t, nil
}

func toEquityRow(e EquitySnapshot) equityRow {
	return equityRow{
		RunID:    e.RunID,
		Time:     formatTime(e.Time),
		Equity:   e.Equity,
		Position: e.Position,
		Cost:     e.Cost,
		Close:    e.Close,
	}
}

func (j *SQLite) RecordRun(r RunRecord) error {
	tx, err := j.db.Beginx()
	if err != nil {
		return err
	}
	if err := recordRun(tx, r); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func recordRun(tx *sqlx.Tx, r RunRecord) error {
	if r.Params != nil && !json.Valid(r.Params) {
		return fmt.Errorf("run %s: params are not valid JSON", r.RunID)
	}
	if _, err := tx.NamedExec(insertRun, toRunRow(r)); err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	for _, m := range r.Monthly {
		row := monthlyRow{RunID: r.RunID, Year: m.Year, Month: m.Month, Return: m.Return}
		if _, err := tx.NamedExec(insertMonthly, row); err != nil {
			return fmt.Errorf("insert monthly return %d-%02d: %w", m.Year, m.Month, err)
		}
	}
	return nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.NamedExec(insertTrade, toTradeRow(t))
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.NamedExec(insertEquity, toEquityRow(e))
	return err
}

// RecordBatch writes a run with all its trades and equity points in one
// transaction.
func (j *SQLite) RecordBatch(b Batch) (err error) {
	tx, err := j.db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = recordRun(tx, b.Run); err != nil {
		return err
	}

	trades, err := tx.PrepareNamed(insertTrade)
	if err != nil {
		return err
	}
	defer trades.Close()
	for _, t := range b.Trades {
		if _, err = trades.Exec(toTradeRow(t)); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
		}
	}

	equity, err := tx.PrepareNamed(insertEquity)
	if err != nil {
		return err
	}
	defer equity.Close()
	for _, e := range b.Equity {
		if _, err = equity.Exec(toEquityRow(e)); err != nil {
			return fmt.Errorf("insert equity %s: %w", formatTime(e.Time), err)
		}
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
