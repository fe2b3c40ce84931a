package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLC period of the traded instrument. Avg is the average traded
// price for the period when the data source provides one.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Avg    float64
	Volume float64
}

// AvgPrice returns the bar's average price, falling back to the typical
// price (H+L+C)/3 when the source carried no average.
func (b Bar) AvgPrice() float64 {
	if b.Avg > 0 {
		return b.Avg
	}
	return (b.High + b.Low + b.Close) / 3
}

// Validate checks a single bar for positive finite prices and a
// non-negative volume.
func (b Bar) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	} {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return fmt.Errorf("bar %s: %s must be positive, got %v", b.Time.Format(time.RFC3339), p.name, p.v)
		}
	}
	if math.IsNaN(b.Avg) || math.IsInf(b.Avg, 0) || b.Avg < 0 {
		return fmt.Errorf("bar %s: avg must be non-negative, got %v", b.Time.Format(time.RFC3339), b.Avg)
	}
	if math.IsNaN(b.Volume) || b.Volume < 0 {
		return fmt.Errorf("bar %s: volume must be non-negative, got %v", b.Time.Format(time.RFC3339), b.Volume)
	}
	return nil
}
