package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/indicators"
)

var scoreDefaults = Params{
	"fast":               2,
	"slow":               7,
	"trend":              20,
	"long_trend":         50,
	"vol_window":         20,
	"momentum":           5,
	"momentum_long":      20,
	"rsi_period":         14,
	"atr_period":         14,
	"atr_multiplier":     3.5,
	"vol_threshold":      0.03,
	"max_position":       0.8,
	"min_scale":          0.4,
	"min_score":          4,
	"stop_loss":          0.07,
	"trailing_stop":      0.10,
	"partial_sell_ratio": 0.4,
	"partial_sell_gain":  0.03,
}

// Score enters when at least MinScore of six conditions hold:
//
//   - golden cross of the fast and slow averages
//   - slow average above the trend average
//   - trend average above the long trend average
//   - RSI between 45 and 75
//   - volatility below 1.2x VolThreshold
//   - short momentum above -1% and long momentum positive
//
// Position size scales MaxPosition by volatility, RSI and trend alignment.
// An open trade exits on a fixed stop against the entry close, a trailing
// stop from the highest close, an ATR stop below that high, or a death cross
// confirmed by an extreme RSI or by high volatility with negative momentum.
// Once per trade, a gain of PartialSellGain sells part of the position.
type Score struct {
	Fast             int
	Slow             int
	Trend            int
	LongTrend        int
	VolWindow        int
	Momentum         int
	MomentumLong     int
	RSIPeriod        int
	ATRPeriod        int
	ATRMultiplier    float64
	VolThreshold     float64
	MaxPosition      float64
	MinScale         float64
	MinScore         int
	StopLoss         float64
	TrailingStop     float64
	PartialSellRatio float64
	PartialSellGain  float64
}

func NewScore(p Params) (SignalSource, error) {
	if err := positive(p, "fast", "slow", "trend", "long_trend", "vol_window", "momentum",
		"momentum_long", "rsi_period", "atr_period", "vol_threshold", "max_position"); err != nil {
		return nil, err
	}
	p = scoreDefaults.Merge(p)
	s := Score{
		Fast:             p.Int("fast", 0),
		Slow:             p.Int("slow", 0),
		Trend:            p.Int("trend", 0),
		LongTrend:        p.Int("long_trend", 0),
		VolWindow:        p.Int("vol_window", 0),
		Momentum:         p.Int("momentum", 0),
		MomentumLong:     p.Int("momentum_long", 0),
		RSIPeriod:        p.Int("rsi_period", 0),
		ATRPeriod:        p.Int("atr_period", 0),
		ATRMultiplier:    p["atr_multiplier"],
		VolThreshold:     p["vol_threshold"],
		MaxPosition:      p["max_position"],
		MinScale:         p["min_scale"],
		MinScore:         p.Int("min_score", 0),
		StopLoss:         p["stop_loss"],
		TrailingStop:     p["trailing_stop"],
		PartialSellRatio: p["partial_sell_ratio"],
		PartialSellGain:  p["partial_sell_gain"],
	}
	if s.Fast >= s.Slow || s.Slow >= s.Trend || s.Trend >= s.LongTrend {
		return nil, fmt.Errorf("averages must satisfy fast < slow < trend < long_trend")
	}
	if s.MinScore < 1 || s.MinScore > 6 {
		return nil, fmt.Errorf("min_score must be between 1 and 6")
	}
	if s.TrailingStop < 0 || s.TrailingStop >= 1 {
		return nil, fmt.Errorf("trailing_stop must be in [0, 1)")
	}
	return s, nil
}

type scoreInputs struct {
	cross     cross
	midTrend  bool
	longTrend bool
	rsi       float64
	vol       float64
	mom       float64
	momLong   float64
}

func (s Score) inputs(req Request) (in scoreInputs, err error) {
	avgs := req.History.AvgPrices()
	closes := req.History.Closes()
	n := len(avgs)

	if in.cross, err = crossover(avgs, s.Fast, s.Slow); err != nil {
		return in, err
	}
	if in.midTrend, err = above(avgs, n, s.Slow, s.Trend); err != nil {
		return in, err
	}
	if in.longTrend, err = above(avgs, n, s.Trend, s.LongTrend); err != nil {
		return in, err
	}
	if in.rsi, err = indicators.RSI(closes, s.RSIPeriod); err != nil {
		return in, err
	}
	if in.vol, err = indicators.Volatility(avgs, s.VolWindow); err != nil {
		return in, err
	}
	if in.mom, err = indicators.Momentum(avgs, s.Momentum); err != nil {
		return in, err
	}
	if in.momLong, err = indicators.Momentum(avgs, s.MomentumLong); err != nil {
		return in, err
	}
	return in, nil
}

func (s Score) Target(req Request) (float64, error) {
	in, err := s.inputs(req)
	if err != nil {
		return holdOnWarmup(req, err)
	}

	if req.Position == 0 {
		if s.score(in) >= s.MinScore {
			return s.size(in), nil
		}
		return 0, nil
	}

	if req.EntryIndex >= 0 {
		entry, highest, err := entryStats(req)
		if err != nil {
			return 0, err
		}
		atr, err := indicators.ATR(req.History, s.ATRPeriod)
		if err != nil {
			return holdOnWarmup(req, err)
		}

		last := req.History[len(req.History)-1].Close
		pnl := last/entry - 1
		switch {
		case pnl < -s.StopLoss:
			return 0, nil
		case last < highest*(1-s.TrailingStop):
			return 0, nil
		case last < highest-s.ATRMultiplier*atr:
			return 0, nil
		}

		if s.exitSignal(in) {
			return 0, nil
		}

		if pnl >= s.PartialSellGain && req.Position == req.EntrySize {
			ratio := math.Min(0.8, s.PartialSellRatio*(1+pnl))
			return req.Position * (1 - ratio), nil
		}
		return req.Position, nil
	}

	if s.exitSignal(in) {
		return 0, nil
	}
	return req.Position, nil
}

func (s Score) score(in scoreInputs) int {
	n := 0
	for _, ok := range []bool{
		in.cross == goldenCross,
		in.midTrend,
		in.longTrend,
		in.rsi > 45 && in.rsi < 75,
		in.vol < s.VolThreshold*1.2,
		in.mom > -0.01 && in.momLong > 0,
	} {
		if ok {
			n++
		}
	}
	return n
}

func (s Score) exitSignal(in scoreInputs) bool {
	if in.cross != deathCross {
		return false
	}
	return in.rsi < 35 || in.rsi > 85 || (in.vol > s.VolThreshold*2.5 && in.mom < 0)
}

func (s Score) size(in scoreInputs) float64 {
	volAdj := math.Max(s.MinScale, 1-in.vol/(s.VolThreshold*1.5))

	rsiAdj := 0.8
	switch {
	case in.rsi < 30 || in.rsi > 70:
		rsiAdj = 0.6
	case in.rsi >= 45 && in.rsi <= 65:
		rsiAdj = 1.0
	}

	trendAdj := 1.0
	if in.longTrend && in.midTrend {
		trendAdj = 1.2
	}
	return s.MaxPosition * volAdj * rsiAdj * trendAdj
}
