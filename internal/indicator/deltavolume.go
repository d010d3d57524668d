package indicator

import "math"

// Delta-volume trend classifications.
const (
	DeltaTrendPositive = "positive"
	DeltaTrendNegative = "negative"
	DeltaTrendNeutral  = "neutral"
)

// DeltaVolumeResult classifies recent volume as buy- or sell-attributed.
type DeltaVolumeResult struct {
	Trend      string
	Strength   float64 // 0..1
	BuyVolume  float64
	SellVolume float64
}

// deltaVolumeLookback is the number of trailing bars analyzed.
const deltaVolumeLookback = 10

// DeltaVolume attributes each trailing bar's volume to the buy or sell side
// by the sign of its close-to-close change (split 50/50 on no change) and
// classifies the net delta. Zero total volume yields a neutral zero-strength
// result.
func DeltaVolume(closes, volumes []float64) DeltaVolumeResult {
	if len(closes) < deltaVolumeLookback || len(volumes) < deltaVolumeLookback {
		return DeltaVolumeResult{Trend: DeltaTrendNeutral}
	}

	var cumulative, buy, sell float64
	for i := len(closes) - deltaVolumeLookback; i < len(closes)-1; i++ {
		change := closes[i+1] - closes[i]
		v := volumes[i]
		switch {
		case change > 0:
			buy += v
			cumulative += v
		case change < 0:
			sell += v
			cumulative -= v
		default:
			buy += v / 2
			sell += v / 2
		}
	}

	total := buy + sell
	ratio := 0.0
	if total > 0 {
		ratio = cumulative / total
	}

	trend := DeltaTrendNeutral
	if ratio > 0.1 {
		trend = DeltaTrendPositive
	} else if ratio < -0.1 {
		trend = DeltaTrendNegative
	}

	return DeltaVolumeResult{
		Trend:      trend,
		Strength:   math.Min(math.Abs(ratio), 1),
		BuyVolume:  buy,
		SellVolume: sell,
	}
}
