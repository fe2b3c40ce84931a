package strategies

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
)

// holdOnWarmup keeps the current position while indicators are warming up
// and passes any other error through.
func holdOnWarmup(req Request, err error) (float64, error) {
	if errors.Is(err, indicators.ErrWarmup) {
		return req.Position, nil
	}
	return 0, err
}

// above reports whether the fast average is above the slow one as of
// values[:n].
func above(values []float64, n, fast, slow int) (bool, error) {
	f, err := indicators.SMAAt(values, n, fast)
	if err != nil {
		return false, err
	}
	s, err := indicators.SMAAt(values, n, slow)
	if err != nil {
		return false, err
	}
	return f > s, nil
}

type cross int

const (
	noCross cross = iota
	goldenCross
	deathCross
)

// crossover compares fast versus slow at the last value and one before.
func crossover(values []float64, fast, slow int) (cross, error) {
	n := len(values)
	now, err := above(values, n, fast, slow)
	if err != nil {
		return noCross, err
	}
	prev, err := above(values, n-1, fast, slow)
	if err != nil {
		return noCross, err
	}
	switch {
	case now && !prev:
		return goldenCross, nil
	case !now && prev:
		return deathCross, nil
	}
	return noCross, nil
}

// entryStats returns the entry close and the highest close since entry.
func entryStats(req Request) (entry, highest float64, err error) {
	if req.EntryIndex < 0 || req.EntryIndex >= len(req.History) {
		return 0, 0, fmt.Errorf("entry index %d outside history of %d bars", req.EntryIndex, len(req.History))
	}
	entry = req.History[req.EntryIndex].Close
	highest = entry
	for _, b := range req.History[req.EntryIndex:] {
		if b.Close > highest {
			highest = b.Close
		}
	}
	return entry, highest, nil
}

func positive(p Params, keys ...string) error {
	for _, k := range keys {
		if v, ok := p[k]; ok && v <= 0 {
			return fmt.Errorf("%s must be positive", k)
		}
	}
	return nil
}
