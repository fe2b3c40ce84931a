package indicators

import (
	"math"

	"github.com/rustyeddy/backtester/market"
)

// TrueRange calculates the true range of cur given the previous bar.
func TrueRange(cur, prev market.Bar) float64 {
	highLow := cur.High - cur.Low
	highClose := math.Abs(cur.High - prev.Close)
	lowClose := math.Abs(cur.Low - prev.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ATR is the simple mean of the last period true ranges. It needs period+1
// bars since each true range looks at the previous close.
func ATR(bars market.Series, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(bars) < period+1 {
		return 0, warmup(period+1, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1])
	}
	return sum / float64(period), nil
}
