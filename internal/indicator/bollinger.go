package indicator

import "math"

// BollingerResult holds the three Bollinger band values.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes period-SMA ± stdDevMult×stddev bands over the trailing
// window. A window shorter than the period collapses all three bands to the
// last price.
func Bollinger(closes []float64, period int, stdDevMult float64) BollingerResult {
	if len(closes) < period || period <= 0 {
		last := 0.0
		if len(closes) > 0 {
			last = closes[len(closes)-1]
		}
		return BollingerResult{Upper: last, Middle: last, Lower: last}
	}

	window := closes[len(closes)-period:]
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	sma := sum / float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - sma
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  sma + stdDev*stdDevMult,
		Middle: sma,
		Lower:  sma - stdDev*stdDevMult,
	}
}
