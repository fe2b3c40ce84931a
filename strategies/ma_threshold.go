package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
)

var maThresholdDefaults = Params{
	"fast":           2,
	"slow":           7,
	"buy_threshold":  0.0003,
	"sell_threshold": -0.0002,
	"weight":         0.97,
}

// MAThreshold goes long when the latest average price clears the previous
// bar's fast moving average by BuyThreshold while staying within
// SellThreshold of the previous slow average. It exits once the average
// price falls below the previous slow average by more than SellThreshold.
type MAThreshold struct {
	Fast, Slow    int
	BuyThreshold  float64
	SellThreshold float64
	Weight        float64
}

func NewMAThreshold(p Params) (SignalSource, error) {
	if err := positive(p, "fast", "slow", "weight"); err != nil {
		return nil, err
	}
	p = maThresholdDefaults.Merge(p)
	s := MAThreshold{
		Fast:          p.Int("fast", 0),
		Slow:          p.Int("slow", 0),
		BuyThreshold:  p["buy_threshold"],
		SellThreshold: p["sell_threshold"],
		Weight:        p["weight"],
	}
	if s.Fast >= s.Slow {
		return nil, fmt.Errorf("fast (%d) must be shorter than slow (%d)", s.Fast, s.Slow)
	}
	return s, nil
}

func (s MAThreshold) Target(req Request) (float64, error) {
	avgs := req.History.AvgPrices()
	n := len(avgs)

	fastPrev, err := indicators.SMAAt(avgs, n-1, s.Fast)
	if err != nil {
		return holdOnWarmup(req, err)
	}
	slowPrev, err := indicators.SMAAt(avgs, n-1, s.Slow)
	if err != nil {
		return holdOnWarmup(req, err)
	}

	last := avgs[n-1]
	vsSlow := last/slowPrev - 1

	if req.Position == 0 {
		if last/fastPrev-1 > s.BuyThreshold && vsSlow >= s.SellThreshold {
			return s.Weight, nil
		}
		return 0, nil
	}
	if vsSlow < s.SellThreshold {
		return 0, nil
	}
	return req.Position, nil
}
