package indicator

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the MACD line as EMA(fast) − EMA(slow) over the window.
//
// The signal line is approximated by recomputing the MACD over trailing
// sub-windows for the last signalPeriod points and EMA-smoothing those
// values, instead of maintaining a true running EMA-of-MACD. This trailing
// recomputation is kept intentionally to match the established scoring
// behavior; see DESIGN.md before "fixing" it.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(closes) < slowPeriod {
		return MACDResult{}
	}

	fastEMA := EMA(closes, fastPeriod)
	slowEMA := EMA(closes, slowPeriod)
	macdLine := fastEMA - slowEMA

	recent := make([]float64, 0, signalPeriod)
	for i := 0; i < signalPeriod; i++ {
		end := len(closes) - signalPeriod + i + 1
		if end < slowPeriod || end > len(closes) {
			continue
		}
		sub := closes[:end]
		recent = append(recent, EMA(sub, fastPeriod)-EMA(sub, slowPeriod))
	}

	signal := 0.0
	if len(recent) > 0 {
		signal = EMA(recent, signalPeriod)
	}

	return MACDResult{
		MACD:      macdLine,
		Signal:    signal,
		Histogram: macdLine - signal,
	}
}
