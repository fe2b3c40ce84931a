package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnordered is returned by Validate when timestamps are not strictly
// increasing.
var ErrUnordered = errors.New("bars not strictly increasing in time")

// Series is an ordered sequence of bars. The simulator only ever reads a
// Series; nothing in this module mutates one after it is loaded.
type Series []Bar

func (s Series) Len() int {
	return len(s)
}

// First returns the first bar, or false for an empty series.
func (s Series) First() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[0], true
}

// Last returns the last bar, or false for an empty series.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// AvgPrices returns Bar.AvgPrice for every bar in order.
func (s Series) AvgPrices() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.AvgPrice()
	}
	return out
}

// Between returns the sub-series with Time in [from, to). A zero bound
// disables that side of the filter.
func (s Series) Between(from, to time.Time) Series {
	var out Series
	for _, b := range s {
		if inRange(b.Time, from, to) {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks ordering and every bar's values.
func (s Series) Validate() error {
	for i, b := range s {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !s[i-1].Time.Before(b.Time) {
			return fmt.Errorf("bar %d at %s: %w", i, b.Time.Format(time.RFC3339), ErrUnordered)
		}
	}
	return nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
