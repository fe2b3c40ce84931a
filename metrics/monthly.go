package metrics

import (
	"math"

	"github.com/rustyeddy/backtester/backtest"
)

// monthly groups the trajectory by calendar month of each point's own
// timestamp. A month's return compounds from the last equity of the
// previous month present in the data, or from the first point for the
// first month. Months without points are absent.
func monthly(traj backtest.Trajectory) []MonthlyReturn {
	var out []MonthlyReturn

	base := traj[0].Equity
	year, month, _ := traj[0].Time.Date()
	last := traj[0].Equity

	flush := func() {
		ret := 0.0
		if base > 0 {
			ret = last/base - 1
		}
		out = append(out, MonthlyReturn{Year: year, Month: month, Return: ret})
		base = last
	}

	for _, pt := range traj[1:] {
		y, m, _ := pt.Time.Date()
		if y != year || m != month {
			flush()
			year, month = y, m
		}
		last = pt.Equity
	}
	flush()
	return out
}

func (r *Report) summarizeMonths() {
	if len(r.MonthlyReturns) == 0 {
		return
	}

	rets := make([]float64, len(r.MonthlyReturns))
	r.BestMonth = math.Inf(-1)
	r.WorstMonth = math.Inf(1)
	for i, m := range r.MonthlyReturns {
		rets[i] = m.Return
		r.BestMonth = math.Max(r.BestMonth, m.Return)
		r.WorstMonth = math.Min(r.WorstMonth, m.Return)
	}
	r.AvgMonth = mean(rets)
	r.MonthlyStd = sampleStd(rets)
}
