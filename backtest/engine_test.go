package backtest

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func closes(cs ...float64) market.Series {
	s := make(market.Series, len(cs))
	for i, c := range cs {
		s[i] = market.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

// scripted returns targets[i-1] when deciding bar i.
func scripted(targets ...float64) strategies.SignalSource {
	return strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		return targets[len(req.History)-1], nil
	})
}

func constant(w float64) strategies.SignalSource {
	return strategies.SignalFunc(func(strategies.Request) (float64, error) { return w, nil })
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("T%d", n)
	}
}

func cfg(capital, rate float64) Config {
	return Config{InitialCapital: capital, CostRate: rate, NewID: seqIDs()}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		series  market.Series
		src     strategies.SignalSource
		cfg     Config
		wantErr error
	}{
		{"empty series", nil, constant(1), cfg(1000, 0), ErrInsufficientData},
		{"single bar", closes(100), constant(1), cfg(1000, 0), ErrInsufficientData},
		{"zero capital", closes(100, 101), constant(1), cfg(0, 0), ErrInvalidParameter},
		{"negative capital", closes(100, 101), constant(1), cfg(-5, 0), ErrInvalidParameter},
		{"infinite capital", closes(100, 101), constant(1), cfg(math.Inf(1), 0), ErrInvalidParameter},
		{"negative cost", closes(100, 101), constant(1), cfg(1000, -0.1), ErrInvalidParameter},
		{"cost of one", closes(100, 101), constant(1), cfg(1000, 1), ErrInvalidParameter},
		{"nil source", closes(100, 101), nil, cfg(1000, 0), ErrInvalidParameter},
		{"nan target", closes(100, 101), constant(math.NaN()), cfg(1000, 0), ErrInvalidSignal},
		{"inf target", closes(100, 101), constant(math.Inf(-1)), cfg(1000, 0), ErrInvalidSignal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Run(tt.series, tt.src, tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		if len(req.History) == 2 {
			return 0, boom
		}
		return 1, nil
	})
	_, err := Run(closes(100, 101, 102), src, cfg(1000, 0))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bar 2")
}

func TestRunFullyInvested(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 99), constant(1), cfg(1000, 0))
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1000, 1100, 990}, res.Trajectory.Equities(), 1e-9)
	assert.False(t, res.Ruined)
	assert.Equal(t, -1, res.RuinIndex)
	assert.InDelta(t, 990, res.FinalEquity(), 1e-9)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "T1", tr.ID)
	assert.Equal(t, ReasonEndOfSeries, tr.Reason)
	assert.Equal(t, t0, tr.EntryTime)
	assert.Equal(t, t0.AddDate(0, 0, 2), tr.ExitTime)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 99.0, tr.ExitPrice)
	assert.Equal(t, 1.0, tr.PositionSize)
	assert.InDelta(t, -10, tr.RealizedPnL, 1e-9)

	require.Len(t, res.Signals, 2)
	assert.Equal(t, t0.AddDate(0, 0, 1), res.Signals[0].Time)
}

func TestRunEntryCost(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 105), constant(1), cfg(1000, 0.01))
	require.NoError(t, err)

	assert.InDelta(t, 10, res.Trajectory[1].Cost, 1e-9)
	assert.InDelta(t, 1090, res.Trajectory[1].Equity, 1e-9)
	assert.Equal(t, 0.0, res.Trajectory[2].Cost, "unchanged position is free")
	assert.InDelta(t, 10, res.Trajectory.TotalCost(), 1e-9)
}

func TestRunTradeAccounting(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 121, 121, 110), scripted(1, 1, 0, -1), cfg(1000, 0.01))
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1000, 1090, 1199, 1187.01, 1283.0499}, res.Trajectory.Equities(), 1e-6)
	assert.InDeltaSlice(t, []float64{0, 1, 1, 0, -1}, positions(res.Trajectory), 0)

	require.Len(t, res.Trades, 2)

	long := res.Trades[0]
	assert.Equal(t, ReasonSignal, long.Reason)
	assert.Equal(t, 100.0, long.EntryPrice)
	assert.Equal(t, 121.0, long.ExitPrice)
	assert.Equal(t, t0.AddDate(0, 0, 3), long.ExitTime)
	assert.InDelta(t, 187.01, long.RealizedPnL, 1e-9)

	short := res.Trades[1]
	assert.Equal(t, ReasonEndOfSeries, short.Reason)
	assert.Equal(t, -1.0, short.PositionSize)
	assert.Equal(t, 121.0, short.EntryPrice)
	assert.Equal(t, 110.0, short.ExitPrice)
	assert.InDelta(t, 96.0399, short.RealizedPnL, 1e-6)
}

func TestRunFlip(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 99), scripted(1, -1), cfg(1000, 0.01))
	require.NoError(t, err)

	// the flip pays for two units of position change
	assert.InDelta(t, 21.8, res.Trajectory[2].Cost, 1e-9)
	assert.InDelta(t, 1177.2, res.FinalEquity(), 1e-9)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, ReasonFlip, res.Trades[0].Reason)
	assert.InDelta(t, 79.1, res.Trades[0].RealizedPnL, 1e-9)
	assert.Equal(t, 99.0, res.Trades[0].ExitPrice)
	assert.Equal(t, t0.AddDate(0, 0, 2), res.Trades[0].ExitTime)
	assert.Equal(t, 110.0, res.Trades[1].EntryPrice)
	assert.InDelta(t, 98.1, res.Trades[1].RealizedPnL, 1e-9)
}

func TestRunExitAtClosingBar(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 130, 140), scripted(1, 0, 0), cfg(1000, 0))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ReasonSignal, tr.Reason)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 130.0, tr.ExitPrice)
	assert.Equal(t, t0.AddDate(0, 0, 2), tr.ExitTime)
	assert.InDelta(t, 100, tr.RealizedPnL, 1e-9)
	assert.InDelta(t, res.Trajectory[2].Equity-res.Trajectory[0].Equity, tr.RealizedPnL, 1e-9)
}

func TestRunResizeKeepsTradeOpen(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 110, 121, 133.1), scripted(1, 2, 0.5), cfg(1000, 0.001))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, 1.0, res.Trades[0].PositionSize)
	assert.Equal(t, ReasonEndOfSeries, res.Trades[0].Reason)
	assert.Greater(t, res.Trajectory[2].Cost, 0.0)
	assert.Greater(t, res.Trajectory[3].Cost, 0.0)
}

func TestRunPnLSumsToEquityChange(t *testing.T) {
	t.Parallel()

	series := closes(100, 104, 101, 99, 103, 108, 102, 97, 101, 110)
	res, err := Run(series, scripted(1, 0, -1, -1, 2, 0, 0, 1, -0.5), cfg(5000, 0.002))
	require.NoError(t, err)

	sum := 0.0
	for _, tr := range res.Trades {
		sum += tr.RealizedPnL
	}
	assert.InDelta(t, res.FinalEquity()-5000, sum, 1e-6)
}

func TestRunRuin(t *testing.T) {
	t.Parallel()

	calls := 0
	src := strategies.SignalFunc(func(strategies.Request) (float64, error) {
		calls++
		return 2, nil
	})

	res, err := Run(closes(100, 50, 60, 70), src, cfg(1000, 0))
	require.NoError(t, err)

	assert.True(t, res.Ruined)
	assert.Equal(t, 1, res.RuinIndex)
	assert.Equal(t, 1, calls, "source is not consulted after ruin")
	assert.Equal(t, []float64{1000, 0, 0, 0}, res.Trajectory.Equities())
	for _, p := range res.Trajectory[2:] {
		assert.Equal(t, 0.0, p.Position)
		assert.Equal(t, 0.0, p.Cost)
	}

	require.Len(t, res.Trades, 1)
	assert.Equal(t, ReasonRuin, res.Trades[0].Reason)
	assert.InDelta(t, -1000, res.Trades[0].RealizedPnL, 1e-9)
	assert.Equal(t, 50.0, res.Trades[0].ExitPrice)
}

func TestRunRuinClampsNegativeEquity(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 40, 80), constant(3), cfg(1000, 0))
	require.NoError(t, err)
	assert.True(t, res.Ruined)
	assert.Equal(t, []float64{1000, 0, 0}, res.Trajectory.Equities())
}

func TestRunEquityStaysPositiveWithoutRuin(t *testing.T) {
	t.Parallel()

	series := closes(100, 103, 98, 101, 95, 99, 104, 100)
	res, err := Run(series, scripted(1, 1, 0.5, 0.5, 0, 1, 1), cfg(1000, 0.001))
	require.NoError(t, err)
	require.False(t, res.Ruined)
	for _, eq := range res.Trajectory.Equities() {
		assert.Greater(t, eq, 0.0)
	}
}

func TestRunNoLookAhead(t *testing.T) {
	t.Parallel()

	series := closes(100, 101, 99, 104, 107, 103)
	src := strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		i := len(req.History)
		if cap(req.History) != i {
			return 0, fmt.Errorf("history capacity %d exposes later bars", cap(req.History))
		}
		if !req.History[i-1].Time.Equal(series[i-1].Time) {
			return 0, fmt.Errorf("history ends at %s", req.History[i-1].Time)
		}
		// momentum on the last visible close
		if i >= 2 && req.History[i-1].Close > req.History[i-2].Close {
			return 1, nil
		}
		return 0, nil
	})

	base, err := Run(series, src, cfg(1000, 0.001))
	require.NoError(t, err)

	// Changing bar k must not change any decision for bars <= k.
	for k := 1; k < len(series); k++ {
		altered := append(market.Series(nil), series...)
		altered[k].Close *= 1.5

		got, err := Run(altered, src, cfg(1000, 0.001))
		require.NoError(t, err)
		for i := 0; i < k; i++ {
			assert.Equal(t, base.Signals[i], got.Signals[i], "bar %d changed decision %d", k, i)
		}
	}
}

func TestRunPassesParams(t *testing.T) {
	t.Parallel()

	c := cfg(1000, 0)
	c.Params = strategies.Params{"weight": 0.5}
	src := strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		return req.Params.Get("weight", 0), nil
	})
	res, err := Run(closes(100, 110), src, c)
	require.NoError(t, err)
	assert.InDelta(t, 1050, res.FinalEquity(), 1e-9)
}

func TestRunEntryState(t *testing.T) {
	t.Parallel()

	var seen []strategies.Request
	src := strategies.SignalFunc(func(req strategies.Request) (float64, error) {
		seen = append(seen, req)
		return 0.5, nil
	})
	_, err := Run(closes(100, 101, 102, 103), src, cfg(1000, 0))
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, -1, seen[0].EntryIndex)
	assert.Equal(t, 0.0, seen[0].Position)
	assert.Equal(t, 0, seen[1].EntryIndex)
	assert.Equal(t, 0.5, seen[1].EntrySize)
	assert.Equal(t, 0.5, seen[2].Position)
}

func TestRunConstantPrice(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(50, 50, 50, 50, 50), scripted(1, 0, 1, 0), cfg(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 1000, 1000, 1000, 1000}, res.Trajectory.Equities())
	require.Len(t, res.Trades, 2)
	for _, tr := range res.Trades {
		assert.Equal(t, 0.0, tr.RealizedPnL)
	}
}

func positions(t Trajectory) []float64 {
	out := make([]float64, len(t))
	for i, p := range t {
		out[i] = p.Position
	}
	return out
}
