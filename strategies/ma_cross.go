package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/indicators"
)

var maCrossDefaults = Params{
	"fast":          2,
	"slow":          7,
	"trend":         20,
	"vol_window":    20,
	"momentum":      5,
	"momentum_min":  0.01,
	"vol_threshold": 0.025,
	"max_position":  0.7,
	"min_scale":     0.3,
	"stop_loss":     0.05,
	"trailing_stop": 0.08,
}

// MACross trades a fast/slow crossover of the average price.
//
// Entry needs a golden cross confirmed by either the slow average sitting
// above the trend average or momentum above MomentumMin, while volatility
// stays under 1.2x VolThreshold. Size shrinks linearly with volatility down
// to MinScale of MaxPosition.
//
// Exits: a death cross with a down trend or volatility above 2x
// VolThreshold, a single-bar loss beyond StopLoss, or a close more than
// TrailingStop below the highest close since entry.
type MACross struct {
	Fast         int
	Slow         int
	Trend        int
	VolWindow    int
	Momentum     int
	MomentumMin  float64
	VolThreshold float64
	MaxPosition  float64
	MinScale     float64
	StopLoss     float64
	TrailingStop float64
}

func NewMACross(p Params) (SignalSource, error) {
	if err := positive(p, "fast", "slow", "trend", "vol_window", "momentum", "vol_threshold", "max_position"); err != nil {
		return nil, err
	}
	p = maCrossDefaults.Merge(p)
	s := MACross{
		Fast:         p.Int("fast", 0),
		Slow:         p.Int("slow", 0),
		Trend:        p.Int("trend", 0),
		VolWindow:    p.Int("vol_window", 0),
		Momentum:     p.Int("momentum", 0),
		MomentumMin:  p["momentum_min"],
		VolThreshold: p["vol_threshold"],
		MaxPosition:  p["max_position"],
		MinScale:     p["min_scale"],
		StopLoss:     p["stop_loss"],
		TrailingStop: p["trailing_stop"],
	}
	if s.Fast >= s.Slow {
		return nil, fmt.Errorf("fast (%d) must be shorter than slow (%d)", s.Fast, s.Slow)
	}
	if s.TrailingStop < 0 || s.TrailingStop >= 1 {
		return nil, fmt.Errorf("trailing_stop must be in [0, 1)")
	}
	return s, nil
}

func (s MACross) Target(req Request) (float64, error) {
	if req.Position > 0 {
		if stop, err := s.stopped(req); err != nil || stop {
			return 0, err
		}
	}

	avgs := req.History.AvgPrices()
	cr, err := crossover(avgs, s.Fast, s.Slow)
	if err != nil {
		return holdOnWarmup(req, err)
	}
	uptrend, err := above(avgs, len(avgs), s.Slow, s.Trend)
	if err != nil {
		return holdOnWarmup(req, err)
	}
	vol, err := indicators.Volatility(avgs, s.VolWindow)
	if err != nil {
		return holdOnWarmup(req, err)
	}
	mom, err := indicators.Momentum(avgs, s.Momentum)
	if err != nil {
		return holdOnWarmup(req, err)
	}

	switch {
	case req.Position == 0:
		if cr == goldenCross && (uptrend || mom > s.MomentumMin) && vol < s.VolThreshold*1.2 {
			return s.size(vol), nil
		}
		return 0, nil
	case req.Position > 0 && cr == deathCross && (!uptrend || vol > s.VolThreshold*2):
		return 0, nil
	}
	return req.Position, nil
}

func (s MACross) stopped(req Request) (bool, error) {
	n := len(req.History)
	if n >= 2 {
		barRet := req.History[n-1].Close/req.History[n-2].Close - 1
		if barRet < -s.StopLoss {
			return true, nil
		}
	}
	if req.EntryIndex < 0 {
		return false, nil
	}
	_, highest, err := entryStats(req)
	if err != nil {
		return false, err
	}
	return req.History[n-1].Close < highest*(1-s.TrailingStop), nil
}

func (s MACross) size(vol float64) float64 {
	scale := math.Max(s.MinScale, 1-vol/(s.VolThreshold*1.5))
	return s.MaxPosition * scale
}
