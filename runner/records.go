package runner

import (
	"encoding/json"
	"time"

	"github.com/rustyeddy/backtester/journal"
)

// RunRecord converts an outcome into its journal summary.
func RunRecord(o *Outcome, created time.Time) journal.RunRecord {
	params, err := json.Marshal(o.Params)
	if err != nil || o.Params == nil {
		params = []byte("{}")
	}

	rep := o.Report
	rec := journal.RunRecord{
		RunID:      o.RunID,
		Created:    created.UTC(),
		Strategy:   o.Job.Strategy,
		Params:     params,
		Dataset:    o.Job.Dataset,
		Instrument: o.Job.Instrument,
		Start:      rep.Start,
		End:        rep.End,
		Bars:       len(o.Job.Series),

		InitialCapital: o.Job.Backtest.InitialCapital,
		CostRate:       o.Job.Backtest.CostRate,
		PeriodsPerYear: o.Job.Metrics.PeriodsPerYear,
		RiskFreeRate:   o.Job.Metrics.RiskFreeRate,

		FinalEquity:      rep.FinalEquity,
		TotalReturn:      rep.TotalReturn,
		AnnualizedReturn: rep.AnnualizedReturn,
		SharpeRatio:      rep.SharpeRatio,
		MaxDrawdown:      rep.MaxDrawdown,
		WinRate:          rep.WinRate,
		Trades:           rep.TradeCount,
		Wins:             rep.Wins,
		Losses:           rep.Losses,
		ProfitFactor:     rep.ProfitFactor,
		BestMonth:        rep.BestMonth,
		WorstMonth:       rep.WorstMonth,
		AvgMonth:         rep.AvgMonth,
		MonthlyStd:       rep.MonthlyStd,
		TotalCost:        o.Result.Trajectory.TotalCost(),
		Ruined:           rep.Ruined,
	}
	for _, m := range rep.MonthlyReturns {
		rec.Monthly = append(rec.Monthly, journal.MonthlyRecord{Year: m.Year, Month: int(m.Month), Return: m.Return})
	}
	if o.Result.Ruined {
		at := o.Result.Trajectory[o.Result.RuinIndex].Time
		rec.Notes = append(rec.Notes, "ruined on "+at.Format("2006-01-02"))
	}
	return rec
}

// TradeRecords converts the outcome's trade log.
func TradeRecords(o *Outcome) []journal.TradeRecord {
	out := make([]journal.TradeRecord, 0, len(o.Result.Trades))
	for _, t := range o.Result.Trades {
		out = append(out, journal.TradeRecord{
			RunID:      o.RunID,
			TradeID:    t.ID,
			Instrument: o.Job.Instrument,
			Size:       t.PositionSize,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			OpenTime:   t.EntryTime,
			CloseTime:  t.ExitTime,
			RealizedPL: t.RealizedPnL,
			Reason:     t.Reason,
		})
	}
	return out
}

// EquitySnapshots converts the outcome's trajectory.
func EquitySnapshots(o *Outcome) []journal.EquitySnapshot {
	out := make([]journal.EquitySnapshot, 0, len(o.Result.Trajectory))
	for _, p := range o.Result.Trajectory {
		out = append(out, journal.EquitySnapshot{
			RunID:    o.RunID,
			Time:     p.Time,
			Equity:   p.Equity,
			Position: p.Position,
			Cost:     p.Cost,
			Close:    p.Close,
		})
	}
	return out
}
