package runner

import (
	"fmt"
	"sort"
)

// RankKeys are the report fields outcomes can be ranked by.
var RankKeys = []string{"sharpe", "return", "cagr", "drawdown", "winrate"}

// Rank sorts outcomes best first (largest value) by key. Drawdowns are
// non-positive, so the shallowest ranks first. Nil outcomes sort last and
// ties keep their input order.
func Rank(outcomes []*Outcome, key string) error {
	value, err := rankValue(key)
	if err != nil {
		return err
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return value(a) > value(b)
	})
	return nil
}

func rankValue(key string) (func(*Outcome) float64, error) {
	switch key {
	case "sharpe", "":
		return func(o *Outcome) float64 { return o.Report.SharpeRatio }, nil
	case "return":
		return func(o *Outcome) float64 { return o.Report.TotalReturn }, nil
	case "cagr":
		return func(o *Outcome) float64 { return o.Report.AnnualizedReturn }, nil
	case "drawdown":
		return func(o *Outcome) float64 { return o.Report.MaxDrawdown }, nil
	case "winrate":
		return func(o *Outcome) float64 { return o.Report.WinRate }, nil
	}
	return nil, fmt.Errorf("unknown rank key %q (%v)", key, RankKeys)
}
