// Package indicator computes technical-analysis indicators over bounded OHLCV
// windows and combines them into a single (signal, confidence, trade-result)
// verdict per instrument. All functions are pure and never panic: short or
// malformed input degrades to a neutral result instead of an error.
package indicator

// EMA computes an exponential moving average over the full window.
// Seeded with the SMA of the first `period` values, then smoothed with
// multiplier 2/(period+1). Returns the last value when the window is shorter
// than the period, 0 on an empty window.
func EMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		if len(values) == 0 {
			return 0
		}
		return values[len(values)-1]
	}

	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)

	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
	}
	return ema
}

// SMA computes a simple moving average of the trailing `period` values.
// Returns the last value when the window is shorter than the period.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	if len(values) < period {
		return values[len(values)-1]
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}
