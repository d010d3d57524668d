package indicator

import (
	"math"

	"crypto-screener/internal/model"
)

// minFullSeries is the minimum window length for the full indicator path.
// Below this the engine degrades to a 24h-change threshold heuristic.
const minFullSeries = 110

// Compute derives a (signal, confidence, trade-result) verdict for one
// instrument from its historical window and current snapshot.
//
// With fewer than minFullSeries points (or no series at all) it falls back to
// a threshold rule on the 24h change. Otherwise each indicator contributes a
// signed vote into a weighted tally; the bullish ratio maps to fixed
// signal/confidence bands. Pure: identical input yields identical output.
func Compute(series *model.Series, snap model.Snapshot) model.Verdict {
	if series.Len() < minFullSeries {
		return degradedVerdict(snap.Change24h)
	}

	closes := series.Closes
	highs := series.Highs
	lows := series.Lows
	volumes := series.Volumes
	price := snap.Price

	ema9 := EMA(closes, 9)
	ema20 := EMA(closes, 20)
	ema55 := EMA(closes, 55)
	ema110 := EMA(closes, 110)

	stoch := Stochastic(highs, lows, closes, 14)
	macd := MACD(closes, 12, 26, 9)
	st := SuperTrend(closes, highs, lows, 10, 3.0)
	pivots := PivotPoints(highs, lows, closes)
	bb := Bollinger(closes, 20, 2)
	dv := DeltaVolume(closes, volumes)
	wr := WilliamsR(highs, lows, closes, 14)

	bullish := 0
	total := 0

	// EMA stack alignment: price above/below all four EMAs carries double weight.
	switch {
	case price > ema9 && price > ema20 && price > ema55 && price > ema110:
		bullish += 2
	case price < ema9 && price < ema20 && price < ema55 && price < ema110:
		bullish -= 2
	}
	total += 2

	// EMA ordering (trend direction).
	if ema9 > ema20 && ema20 > ema55 && ema55 > ema110 {
		bullish++
	} else if ema9 < ema20 && ema20 < ema55 && ema55 < ema110 {
		bullish--
	}
	total++

	// MACD line vs signal line, both-sided around zero.
	switch {
	case macd.MACD > 0 && macd.Signal > 0 && macd.MACD > macd.Signal:
		bullish += 2
	case macd.MACD < 0 && macd.Signal < 0 && macd.MACD < macd.Signal:
		bullish -= 2
	case macd.MACD > 0 && macd.Signal > 0 && macd.MACD < macd.Signal:
		bullish++
	case macd.MACD < 0 && macd.Signal < 0 && macd.MACD > macd.Signal:
		bullish--
	case macd.MACD > 0 && macd.Signal < 0:
		bullish++
	case macd.MACD < 0 && macd.Signal > 0:
		bullish--
	}
	total += 2

	// Stochastic crossovers in the oversold/overbought zones.
	switch {
	case stoch.K > stoch.D && stoch.K < 20:
		bullish += 2
	case stoch.K < stoch.D && stoch.K > 80:
		bullish -= 2
	case stoch.K > stoch.D && stoch.K > 80:
		bullish--
	case stoch.K < stoch.D && stoch.K < 20:
		bullish++
	}
	total += 2

	// SuperTrend state and fresh flips.
	if st.Trend == 1 {
		bullish += 2
	} else if st.Trend == -1 {
		bullish -= 2
	}
	total += 2

	if st.BuySignal {
		bullish++
	} else if st.SellSignal {
		bullish--
	}
	total++

	// Position relative to the Bollinger middle band.
	if price > bb.Middle {
		bullish++
	} else if price < bb.Middle {
		bullish--
	}
	total++

	// Band-relative position: extremes vote contrarian.
	if bb.Upper > bb.Lower {
		pos := (price - bb.Lower) / (bb.Upper - bb.Lower)
		if pos > 0.8 {
			bullish--
		} else if pos < 0.2 {
			bullish++
		}
	}
	total++

	// Pivot levels: proximity to support/resistance plus side of the pivot.
	if price > 0 {
		if math.Abs(price-pivots.Support1)/price < 0.02 {
			bullish++
		}
		if math.Abs(price-pivots.Resistance1)/price < 0.02 {
			bullish--
		}
	}
	if price > pivots.Pivot {
		bullish++
	} else {
		bullish--
	}
	total += 2

	// Delta-volume conviction scales with strength.
	if dv.Trend == DeltaTrendPositive && dv.Strength > 0.6 {
		bullish += int(math.Round(dv.Strength * 2))
	} else if dv.Trend == DeltaTrendNegative && dv.Strength > 0.6 {
		bullish -= int(math.Round(dv.Strength * 2))
	}
	total += 2

	// Williams %R zones.
	switch {
	case wr < -80:
		bullish += 2
	case wr > -20:
		bullish -= 2
	case wr < -50:
		bullish++
	case wr > -50:
		bullish--
	}
	total += 2

	// Liquidity and 24h momentum.
	if snap.QuoteVolume > 100000 {
		bullish++
	}
	total++

	if snap.Change24h > 3 {
		bullish++
	} else if snap.Change24h < -3 {
		bullish--
	}
	total++

	ratio := float64(bullish) / float64(total)

	var signal model.Signal
	var confidence float64
	switch {
	case ratio >= 0.75:
		signal = model.SignalBuy
		confidence = 75 + (ratio-0.75)*100
	case ratio <= 0.25:
		signal = model.SignalSell
		confidence = 75 + (0.25-ratio)*100
	case ratio >= 0.6:
		signal = model.SignalBuy
		confidence = 50 + (ratio-0.5)*50
	case ratio <= 0.4:
		signal = model.SignalSell
		confidence = 50 + (0.5-ratio)*50
	default:
		signal = model.SignalHold
		confidence = 40 + ratio*20
	}

	final := int(math.Round(math.Min(confidence, 95)))
	if final < 0 {
		final = 0
	}

	return model.Verdict{
		Signal:      signal,
		Confidence:  final,
		TradeResult: TradeResultFor(signal, final, snap.Change24h),
	}
}

// degradedVerdict is the change%-only heuristic used when no usable
// historical window exists for the instrument.
func degradedVerdict(change24h float64) model.Verdict {
	switch {
	case change24h > 5:
		conf := int(math.Round(60 + math.Min(change24h*2, 30)))
		return model.Verdict{
			Signal:      model.SignalBuy,
			Confidence:  conf,
			TradeResult: TradeResultFor(model.SignalBuy, conf, change24h),
		}
	case change24h < -5:
		conf := int(math.Round(60 + math.Min(math.Abs(change24h)*2, 30)))
		return model.Verdict{
			Signal:      model.SignalSell,
			Confidence:  conf,
			TradeResult: TradeResultFor(model.SignalSell, conf, change24h),
		}
	default:
		return model.Verdict{
			Signal:      model.SignalHold,
			Confidence:  50,
			TradeResult: TradeResultFor(model.SignalHold, 50, change24h),
		}
	}
}
