package indicators

import "math"

// PctChange returns the simple returns of values; the result is one shorter
// than the input.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

// Volatility is the sample standard deviation of the last period simple
// returns. It needs period+1 values.
func Volatility(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, warmup(period+1, len(values))
	}
	rets := PctChange(values[len(values)-period-1:])
	return stdev(rets), nil
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
