package indicator

// PivotResult holds classic pivot levels derived from a trailing window.
type PivotResult struct {
	Pivot       float64
	Support1    float64
	Resistance1 float64
	High        float64
	Low         float64
}

// pivotLookback is the trailing window used for pivot levels.
const pivotLookback = 20

// PivotPoints computes the classic pivot, first support and first resistance
// over the trailing 20-bar high/low/close. Zero values are returned when the
// window is too short.
func PivotPoints(highs, lows, closes []float64) PivotResult {
	n := len(closes)
	if n < pivotLookback || len(highs) != n || len(lows) != n {
		return PivotResult{}
	}

	high := highs[n-pivotLookback]
	low := lows[n-pivotLookback]
	for i := n - pivotLookback + 1; i < n; i++ {
		if highs[i] > high {
			high = highs[i]
		}
		if lows[i] < low {
			low = lows[i]
		}
	}
	close := closes[n-1]

	pivot := (high + low + close) / 3
	return PivotResult{
		Pivot:       pivot,
		Support1:    2*pivot - high,
		Resistance1: 2*pivot - low,
		High:        high,
		Low:         low,
	}
}
