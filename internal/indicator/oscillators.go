package indicator

// StochasticResult holds the %K and %D lines of the stochastic oscillator.
type StochasticResult struct {
	K float64
	D float64
}

// Stochastic computes %K over the period high/low range for every bar with a
// full lookback, and %D as the 3-bar SMA of %K. A flat range contributes a
// neutral 50 instead of dividing by zero.
func Stochastic(highs, lows, closes []float64, period int) StochasticResult {
	n := len(closes)
	if n < period || len(highs) != n || len(lows) != n {
		return StochasticResult{K: 50, D: 50}
	}

	ks := make([]float64, 0, n-period+1)
	for i := period - 1; i < n; i++ {
		hh, ll := highs[i], lows[i]
		for j := i - period + 1; j <= i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		k := 50.0
		if hh > ll {
			k = (closes[i] - ll) / (hh - ll) * 100
		}
		ks = append(ks, k)
	}

	d := 50.0
	if len(ks) >= 3 {
		d = (ks[len(ks)-1] + ks[len(ks)-2] + ks[len(ks)-3]) / 3
	}

	return StochasticResult{K: ks[len(ks)-1], D: d}
}

// WilliamsR computes the Williams %R momentum oscillator over the trailing
// period. Output range is [-100, 0]; -50 is returned for short or flat input.
func WilliamsR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < period || len(highs) != n || len(lows) != n {
		return -50
	}

	hh, ll := highs[n-period], lows[n-period]
	for i := n - period + 1; i < n; i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	if hh <= ll {
		return -50
	}
	return (hh - closes[n-1]) / (hh - ll) * -100
}
