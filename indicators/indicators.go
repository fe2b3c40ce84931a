// Package indicators provides causal technical indicators. Every function
// evaluates at the last element of its input, so passing a history prefix
// never leaks later bars into the value.
package indicators

import (
	"errors"
	"fmt"
)

// ErrWarmup is returned when the input is too short for the period.
var ErrWarmup = errors.New("not enough data")

func warmup(need, got int) error {
	return fmt.Errorf("%w: need %d, got %d", ErrWarmup, need, got)
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	return nil
}
