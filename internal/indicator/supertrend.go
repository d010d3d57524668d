package indicator

import "math"

// SuperTrendResult holds the current trend flag, band values and flip signals.
type SuperTrendResult struct {
	Trend      int // 1 uptrend, -1 downtrend, 0 not enough data
	Value      float64
	BuySignal  bool // trend flipped -1 → 1 on the last bar
	SellSignal bool // trend flipped 1 → -1 on the last bar
	UpperBand  float64
	LowerBand  float64
	ATR        float64
}

// SuperTrend computes a band-following trend indicator with hysteresis.
// Bands are derived from the HL2 midpoint ± multiplier×ATR, where ATR uses
// Wilder smoothing over the True Range. A final band only ratchets toward
// price; the trend flag flips exactly when the close crosses the opposite
// final band.
func SuperTrend(closes, highs, lows []float64, atrPeriod int, multiplier float64) SuperTrendResult {
	n := len(closes)
	if n < atrPeriod+1 || len(highs) != n || len(lows) != n {
		return SuperTrendResult{}
	}

	tr := trueRanges(closes, highs, lows)

	// Wilder-smoothed ATR, first value seeded with the simple mean.
	atr := make([]float64, n)
	first := 0.0
	for i := 0; i < atrPeriod; i++ {
		first += tr[i]
	}
	atr[atrPeriod-1] = first / float64(atrPeriod)
	for i := atrPeriod; i < n; i++ {
		atr[i] = (atr[i-1]*float64(atrPeriod-1) + tr[i]) / float64(atrPeriod)
	}

	finalUpper := make([]float64, n)
	finalLower := make([]float64, n)
	value := make([]float64, n)
	trend := make([]int, n)

	for i := 0; i < n; i++ {
		if i < atrPeriod-1 {
			trend[i] = 1
			continue
		}

		hl2 := (highs[i] + lows[i]) / 2
		upper := hl2 + multiplier*atr[i]
		lower := hl2 - multiplier*atr[i]

		if i == atrPeriod-1 {
			finalUpper[i] = upper
			finalLower[i] = lower
			trend[i] = 1
		} else {
			// Bands only ratchet toward price until the prior close breaks them.
			if upper < finalUpper[i-1] || closes[i-1] > finalUpper[i-1] {
				finalUpper[i] = upper
			} else {
				finalUpper[i] = finalUpper[i-1]
			}
			if lower > finalLower[i-1] || closes[i-1] < finalLower[i-1] {
				finalLower[i] = lower
			} else {
				finalLower[i] = finalLower[i-1]
			}

			switch {
			case trend[i-1] == -1 && closes[i] > finalLower[i]:
				trend[i] = 1
			case trend[i-1] == 1 && closes[i] < finalUpper[i]:
				trend[i] = -1
			default:
				trend[i] = trend[i-1]
			}
		}

		if trend[i] == 1 {
			value[i] = finalLower[i]
		} else {
			value[i] = finalUpper[i]
		}
	}

	last := n - 1
	prev := n - 2
	return SuperTrendResult{
		Trend:      trend[last],
		Value:      value[last],
		BuySignal:  prev >= 0 && trend[last] == 1 && trend[prev] == -1,
		SellSignal: prev >= 0 && trend[last] == -1 && trend[prev] == 1,
		UpperBand:  finalUpper[last],
		LowerBand:  finalLower[last],
		ATR:        atr[last],
	}
}

// ATR computes the Wilder-smoothed Average True Range over the window.
// Returns 1 when the window is too short so downstream ratios stay finite.
func ATR(closes, highs, lows []float64, period int) float64 {
	n := len(closes)
	if n < period+1 || len(highs) != n || len(lows) != n {
		return 1
	}

	tr := trueRanges(closes, highs, lows)

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)

	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
	}
	return atr
}

// trueRanges returns max(high−low, |high−prevClose|, |low−prevClose|) per bar.
func trueRanges(closes, highs, lows []float64) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}
