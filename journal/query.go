package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run or trade does not exist.
var ErrNotFound = errors.New("not found")

const (
	selectRun = `
		SELECT run_id, created, strategy, params, dataset, instrument, start_time, end_time, bars,
		       initial_capital, cost_rate, periods_per_year, risk_free_rate, final_equity,
		       total_return, annualized_return, sharpe_ratio, max_drawdown, win_rate,
		       trades, wins, losses, profit_factor, best_month, worst_month, avg_month, monthly_std,
		       total_cost, ruined, org_path, notes
		FROM runs`

	selectTrade = `
		SELECT trade_id, run_id, instrument, size, entry_price, exit_price, open_time, close_time, realized_pl, reason
		FROM trades`
)

// GetRun returns a run by ID, including its monthly returns.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var row runRow
	err := j.db.Get(&row, selectRun+` WHERE run_id = ?`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %q %w", runID, ErrNotFound)
		}
		return RunRecord{}, err
	}

	rec, err := row.record()
	if err != nil {
		return RunRecord{}, err
	}
	if rec.Monthly, err = j.ListMonthlyByRunID(runID); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// ListRuns returns the most recent runs first, at most limit (0 means all).
func (j *SQLite) ListRuns(limit int) ([]RunRecord, error) {
	query := selectRun + ` ORDER BY created DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := j.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListMonthlyByRunID returns the run's monthly returns in calendar order.
func (j *SQLite) ListMonthlyByRunID(runID string) ([]MonthlyRecord, error) {
	var rows []monthlyRow
	err := j.db.Select(&rows, `
		SELECT run_id, year, month, ret
		FROM monthly_returns
		WHERE run_id = ?
		ORDER BY year ASC, month ASC`, runID)
	if err != nil {
		return nil, err
	}

	out := make([]MonthlyRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthlyRecord{Year: r.Year, Month: r.Month, Return: r.Return})
	}
	return out, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	var row tradeRow
	err := j.db.Get(&row, selectTrade+` WHERE trade_id = ?`, tradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return row.record()
}

// ListTradesByRunID returns a run's trades in close order.
func (j *SQLite) ListTradesByRunID(runID string) ([]TradeRecord, error) {
	return j.selectTrades(selectTrade+`
		WHERE run_id = ?
		ORDER BY close_time ASC, open_time ASC`, runID)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.selectTrades(selectTrade+`
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, formatTime(start), formatTime(end))
}

func (j *SQLite) selectTrades(query string, args ...any) ([]TradeRecord, error) {
	var rows []tradeRow
	if err := j.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]TradeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListEquityByRunID returns a run's equity trajectory in time order.
func (j *SQLite) ListEquityByRunID(runID string) ([]EquitySnapshot, error) {
	var rows []equityRow
	err := j.db.Select(&rows, `
		SELECT run_id, time, equity, position, cost, close
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}

	out := make([]EquitySnapshot, 0, len(rows))
	for _, r := range rows {
		ts, err := parseTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("equity %s: %w", r.Time, err)
		}
		out = append(out, EquitySnapshot{
			RunID:    r.RunID,
			Time:     ts,
			Equity:   r.Equity,
			Position: r.Position,
			Cost:     r.Cost,
			Close:    r.Close,
		})
	}
	return out, nil
}
