package indicators

// SMA calculates the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period {
		return 0, warmup(period, len(values))
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// SMAAt is SMA evaluated as of values[:n], i.e. offset bars back from the end
// when n = len(values)-offset.
func SMAAt(values []float64, n, period int) (float64, error) {
	if n < 0 || n > len(values) {
		return 0, warmup(period, n)
	}
	return SMA(values[:n], period)
}

// Momentum is the relative change over the last period steps:
// values[last]/values[last-period] - 1.
func Momentum(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, warmup(period+1, len(values))
	}
	last := len(values) - 1
	base := values[last-period]
	if base == 0 {
		return 0, nil
	}
	return values[last]/base - 1, nil
}
