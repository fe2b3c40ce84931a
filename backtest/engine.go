// Package backtest runs a signal source bar by bar over a price series and
// records the resulting equity trajectory and trade log.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/backtester/id"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
)

// Config holds the simulation parameters of a single run.
type Config struct {
	// InitialCapital is the starting equity; must be positive.
	InitialCapital float64

	// CostRate is charged on every position change as a fraction of the
	// traded notional: rate * |Δposition| * equity. Must be in [0, 1).
	CostRate float64

	// Params are handed to the source on every call.
	Params strategies.Params

	// NewID names trades. Defaults to id.New.
	NewID func() string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) || c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidParameter, c.InitialCapital)
	}
	if math.IsNaN(c.CostRate) || c.CostRate < 0 || c.CostRate >= 1 {
		return fmt.Errorf("%w: cost rate must be in [0, 1), got %v", ErrInvalidParameter, c.CostRate)
	}
	return nil
}

// Result is everything a run produces.
type Result struct {
	Trajectory Trajectory
	Trades     TradeLog
	Signals    []strategies.PositionSignal

	// Ruined is set when equity reached zero; RuinIndex is the bar it
	// happened on, or -1.
	Ruined    bool
	RuinIndex int
}

// FinalEquity is the equity at the last bar.
func (r *Result) FinalEquity() float64 {
	if len(r.Trajectory) == 0 {
		return 0
	}
	return r.Trajectory[len(r.Trajectory)-1].Equity
}

// Run simulates src over series.
//
// For every bar i >= 1 the source sees bars [0, i-1] only and returns the
// position to hold through bar i. Equity moves by
//
//	equity[i] = equity[i-1] * (1 + position*ret[i]) - cost
//	cost      = CostRate * |position - previous| * equity[i-1]
//
// with ret[i] the close-to-close return. A decision taken at bar i fills at
// close[i-1], the last price the source saw, so trade entry and exit prices
// are that close.
//
// Equity at or below zero is ruin: it is clamped to 0, any open trade closes
// with reason Ruin and the account stays flat at 0 for the remaining bars.
// A trade still open after the last bar is closed at the final close with
// reason EndOfSeries without touching equity.
//
// Run never mutates series or src.
func Run(series market.Series, src strategies.SignalSource, cfg Config) (*Result, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bars, got %d", ErrInsufficientData, len(series))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: signal source is required", ErrInvalidParameter)
	}

	e := &engine{
		series: series,
		cfg:    cfg,
		newID:  cfg.NewID,
		res: &Result{
			Trajectory: make(Trajectory, len(series)),
			Signals:    make([]strategies.PositionSignal, 0, len(series)-1),
			RuinIndex:  -1,
		},
	}
	if e.newID == nil {
		e.newID = id.New
	}
	return e.run(src)
}

type engine struct {
	series market.Series
	cfg    Config
	newID  func() string
	res    *Result

	equity   float64
	position float64
	open     *openTrade
}

func (e *engine) run(src strategies.SignalSource) (*Result, error) {
	first := e.series[0]
	e.equity = e.cfg.InitialCapital
	e.res.Trajectory[0] = EquityPoint{Time: first.Time, Equity: e.equity, Close: first.Close}

	for i := 1; i < len(e.series); i++ {
		bar := e.series[i]
		if e.res.Ruined {
			e.res.Trajectory[i] = EquityPoint{Time: bar.Time, Close: bar.Close}
			continue
		}

		target, err := e.decide(src, i)
		if err != nil {
			return nil, err
		}
		e.step(i, target)
	}

	if e.open != nil {
		last := e.series[len(e.series)-1]
		pnl := e.equity - e.open.startEquity
		e.exit(last.Time, last.Close, pnl, ReasonEndOfSeries)
	}
	return e.res, nil
}

func (e *engine) decide(src strategies.SignalSource, i int) (float64, error) {
	req := strategies.Request{
		// Capacity is capped so the source cannot reslice into bar i.
		History:    e.series[:i:i],
		Position:   e.position,
		EntryIndex: -1,
		Params:     e.cfg.Params,
	}
	if e.open != nil {
		req.EntryIndex = e.open.index
		req.EntrySize = e.open.size
	}

	at := e.series[i].Time
	target, err := src.Target(req)
	if err != nil {
		return 0, fmt.Errorf("signal for bar %d (%s): %w", i, at.Format(time.RFC3339), err)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, fmt.Errorf("%w: bar %d (%s): target %v", ErrInvalidSignal, i, at.Format(time.RFC3339), target)
	}
	e.res.Signals = append(e.res.Signals, strategies.PositionSignal{Time: at, Target: target})
	return target, nil
}

func (e *engine) step(i int, target float64) {
	prev, bar := e.series[i-1], e.series[i]
	prevEquity := e.equity

	ret := (bar.Close - prev.Close) / prev.Close
	cost := e.cfg.CostRate * math.Abs(target-e.position) * prevEquity
	e.equity = prevEquity*(1+target*ret) - cost

	if target != e.position {
		e.rebalance(i, target, prevEquity)
	}
	e.position = target

	if e.equity <= 0 {
		e.equity = 0
		e.res.Ruined = true
		e.res.RuinIndex = i
		if e.open != nil {
			e.exit(bar.Time, bar.Close, -e.open.startEquity, ReasonRuin)
		}
		e.position = 0
	}

	e.res.Trajectory[i] = EquityPoint{
		Time:     bar.Time,
		Equity:   e.equity,
		Position: target,
		Cost:     cost,
		Close:    bar.Close,
	}
}

// rebalance updates the trade book for a position change decided at bar i.
// New trades open at close[i-1], the last price the source saw; closed
// trades are stamped with bar i, the first bar the old position no longer
// earns.
func (e *engine) rebalance(i int, target, prevEquity float64) {
	bar := e.series[i]
	held := e.position

	switch {
	case held == 0:
		e.enter(i-1, target, prevEquity)

	case target == 0:
		exitCost := e.cfg.CostRate * math.Abs(held) * prevEquity
		e.exit(bar.Time, bar.Close, prevEquity-exitCost-e.open.startEquity, ReasonSignal)

	case (held > 0) != (target > 0):
		exitCost := e.cfg.CostRate * math.Abs(held) * prevEquity
		e.exit(bar.Time, bar.Close, prevEquity-exitCost-e.open.startEquity, ReasonFlip)
		e.enter(i-1, target, prevEquity-exitCost)
	}
}

func (e *engine) enter(index int, size, startEquity float64) {
	b := e.series[index]
	e.open = &openTrade{
		id:          e.newID(),
		index:       index,
		entryTime:   b.Time,
		entryPrice:  b.Close,
		size:        size,
		startEquity: startEquity,
	}
}

func (e *engine) exit(at time.Time, price, pnl float64, reason string) {
	e.res.Trades = append(e.res.Trades, e.open.close(at, price, pnl, reason))
	e.open = nil
}
