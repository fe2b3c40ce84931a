package backtest

import "time"

// Exit reasons recorded on trades.
const (
	ReasonSignal      = "Signal"
	ReasonFlip        = "Flip"
	ReasonRuin        = "Ruin"
	ReasonEndOfSeries = "EndOfSeries"
)

// Trade is a closed round trip from a non-zero position back to flat (or
// through a sign flip). PositionSize is the size it opened with;
// resizes in the same direction keep the trade open.
type Trade struct {
	ID           string
	EntryTime    time.Time
	ExitTime     time.Time
	EntryPrice   float64
	ExitPrice    float64
	PositionSize float64
	RealizedPnL  float64
	Reason       string
}

// TradeLog is the trades of a run in exit order.
type TradeLog []Trade

// EquityPoint is the account state at the close of a bar. Position is the
// exposure held through that bar and Cost the transaction cost charged on
// entering it.
type EquityPoint struct {
	Time     time.Time
	Equity   float64
	Position float64
	Cost     float64
	Close    float64
}

// Trajectory has one point per bar; point 0 is the initial capital.
type Trajectory []EquityPoint

// Equities returns the equity column.
func (t Trajectory) Equities() []float64 {
	out := make([]float64, len(t))
	for i, p := range t {
		out[i] = p.Equity
	}
	return out
}

// TotalCost sums every transaction cost charged.
func (t Trajectory) TotalCost() float64 {
	sum := 0.0
	for _, p := range t {
		sum += p.Cost
	}
	return sum
}

// openTrade is the book-keeping for a trade that has not exited yet.
type openTrade struct {
	id          string
	index       int
	entryTime   time.Time
	entryPrice  float64
	size        float64
	startEquity float64
}

func (o *openTrade) close(exit time.Time, price, pnl float64, reason string) Trade {
	return Trade{
		ID:           o.id,
		EntryTime:    o.entryTime,
		ExitTime:     exit,
		EntryPrice:   o.entryPrice,
		ExitPrice:    price,
		PositionSize: o.size,
		RealizedPnL:  pnl,
		Reason:       reason,
	}
}
