package indicators

// minLoss stands in for a zero average loss so RSI saturates near 100
// instead of dividing by zero.
const minLoss = 1e-10

// RSI is the relative strength index over the last period changes using
// simple averages of gains and losses.
func RSI(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, warmup(period+1, len(values))
	}

	var gain, loss float64
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	if loss == 0 {
		loss = minLoss
	}

	rs := gain / loss
	return 100 - 100/(1+rs), nil
}
