package backtest

import "errors"

var (
	// ErrInsufficientData is returned for series shorter than two bars.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter is returned for out of range configuration.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidSignal is returned when a source yields a NaN or infinite
	// target.
	ErrInvalidSignal = errors.New("invalid signal")
)
