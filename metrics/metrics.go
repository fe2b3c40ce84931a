// Package metrics turns an equity trajectory and trade log into a
// performance report.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/backtester/backtest"
)

// ErrDegenerateSeries is returned when a trajectory cannot be measured:
// no periods or a non-positive starting equity.
var ErrDegenerateSeries = errors.New("degenerate series")

// Options are the annualization inputs. They are always passed explicitly.
type Options struct {
	// PeriodsPerYear is the number of bars in a year, 252 for daily
	// trading data.
	PeriodsPerYear int

	// RiskFreeRate is the annual rate subtracted from returns in the
	// Sharpe ratio, spread evenly over PeriodsPerYear.
	RiskFreeRate float64
}

// DefaultOptions is daily bars with no risk-free rate.
func DefaultOptions() Options {
	return Options{PeriodsPerYear: 252}
}

func (o Options) Validate() error {
	if o.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: periods per year must be positive, got %d", backtest.ErrInvalidParameter, o.PeriodsPerYear)
	}
	if math.IsNaN(o.RiskFreeRate) || math.IsInf(o.RiskFreeRate, 0) {
		return fmt.Errorf("%w: risk free rate must be finite", backtest.ErrInvalidParameter)
	}
	return nil
}

// MonthlyReturn is the compounded return of one calendar month.
type MonthlyReturn struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Return float64    `json:"return"`
}

// Report is the full set of metrics for one run.
type Report struct {
	TotalReturn      float64         `json:"total_return"`
	AnnualizedReturn float64         `json:"annualized_return"`
	SharpeRatio      float64         `json:"sharpe_ratio"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	WinRate          float64         `json:"win_rate"`
	TradeCount       int             `json:"trade_count"`
	MonthlyReturns   []MonthlyReturn `json:"monthly_returns"`

	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Periods       int       `json:"periods"`
	InitialEquity float64   `json:"initial_equity"`
	FinalEquity   float64   `json:"final_equity"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	ProfitFactor  float64   `json:"profit_factor"`
	BestMonth     float64   `json:"best_month"`
	WorstMonth    float64   `json:"worst_month"`
	AvgMonth      float64   `json:"avg_month"`
	MonthlyStd    float64   `json:"monthly_std"`
	Ruined        bool      `json:"ruined"`
}

// Monthly looks up the return for a calendar month.
func (r Report) Monthly(year int, month time.Month) (float64, bool) {
	for _, m := range r.MonthlyReturns {
		if m.Year == year && m.Month == month {
			return m.Return, true
		}
	}
	return 0, false
}

// Compute measures a trajectory and its trades. It has no side effects and
// never returns NaN or infinite values.
func Compute(traj backtest.Trajectory, trades backtest.TradeLog, opts Options) (Report, error) {
	if err := opts.Validate(); err != nil {
		return Report{}, err
	}
	if len(traj) < 2 {
		return Report{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrDegenerateSeries, len(traj))
	}

	first, last := traj[0], traj[len(traj)-1]
	if !(first.Equity > 0) {
		return Report{}, fmt.Errorf("%w: initial equity %v", ErrDegenerateSeries, first.Equity)
	}

	n := len(traj) - 1
	p := float64(opts.PeriodsPerYear)
	growth := last.Equity / first.Equity

	r := Report{
		TotalReturn:      growth - 1,
		AnnualizedReturn: finite(math.Pow(growth, p/float64(n)) - 1),
		SharpeRatio:      sharpe(traj, opts),
		MaxDrawdown:      maxDrawdown(traj),
		Start:            first.Time,
		End:              last.Time,
		Periods:          n,
		InitialEquity:    first.Equity,
		FinalEquity:      last.Equity,
		TradeCount:       len(trades),
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		switch {
		case t.RealizedPnL > 0:
			r.Wins++
			grossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			r.Losses++
			grossLoss -= t.RealizedPnL
		}
	}
	if r.TradeCount > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TradeCount)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	}

	for _, pt := range traj[1:] {
		if pt.Equity <= 0 {
			r.Ruined = true
			break
		}
	}

	r.MonthlyReturns = monthly(traj)
	r.summarizeMonths()
	return r, nil
}

// periodReturns are equity[i]/equity[i-1]-1, with 0 wherever the previous
// equity is 0 (the frozen tail after ruin).
func periodReturns(traj backtest.Trajectory) []float64 {
	out := make([]float64, len(traj)-1)
	for i := 1; i < len(traj); i++ {
		prev := traj[i-1].Equity
		if prev > 0 {
			out[i-1] = traj[i].Equity/prev - 1
		}
	}
	return out
}

func sharpe(traj backtest.Trajectory, opts Options) float64 {
	rets := periodReturns(traj)
	if len(rets) < 2 {
		return 0
	}

	p := float64(opts.PeriodsPerYear)
	rf := opts.RiskFreeRate / p
	scale := meanAbs(rets) + math.Abs(rf)
	for i := range rets {
		rets[i] -= rf
	}

	std := sampleStd(rets)
	if std <= relStd*scale {
		return 0
	}
	return finite(mean(rets) / std * math.Sqrt(p))
}

func maxDrawdown(traj backtest.Trajectory) float64 {
	peak := traj[0].Equity
	worst := 0.0
	for _, pt := range traj {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if dd := (pt.Equity - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
