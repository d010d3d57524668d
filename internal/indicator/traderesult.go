package indicator

import (
	"math"

	"crypto-screener/internal/model"
)

// TradeResultFor maps a (signal, confidence, 24h change) triple to an
// actionable label. Swing setups are checked first, then extreme movers,
// then plain confidence bands.
func TradeResultFor(signal model.Signal, confidence int, change24h float64) model.TradeResult {
	if swing, ok := swingSetup(signal, confidence, change24h); ok {
		return swing
	}

	if math.Abs(change24h) > 15 {
		return model.TradeResult{Status: "risky-trade", Label: "Risky Trade"}
	}

	switch {
	case confidence >= 80 && signal == model.SignalBuy:
		return model.TradeResult{Status: "trade-now", Label: "Trade Now (Long)"}
	case confidence >= 80 && signal == model.SignalSell:
		return model.TradeResult{Status: "trade-now", Label: "Trade Now (Short)"}
	case confidence >= 70 && signal == model.SignalBuy:
		return model.TradeResult{Status: "already-long", Label: "Already Traded Long"}
	case confidence >= 70 && signal == model.SignalSell:
		return model.TradeResult{Status: "already-short", Label: "Already Traded Short"}
	default:
		return model.TradeResult{Status: "dont-trade", Label: "Don't Trade"}
	}
}

// swingSetup detects moderate-conviction moves in the swing-friendly change
// band: a BUY or SELL with 2% < |change| < 12% and confidence in [65, 85).
func swingSetup(signal model.Signal, confidence int, change24h float64) (model.TradeResult, bool) {
	if confidence < 65 || confidence >= 85 {
		return model.TradeResult{}, false
	}
	abs := math.Abs(change24h)
	if abs <= 2 || abs >= 12 {
		return model.TradeResult{}, false
	}
	if signal == model.SignalBuy && change24h > 0 {
		return model.TradeResult{Status: "swing-move", Label: "Swing UP (Buy)"}, true
	}
	if signal == model.SignalSell && change24h < 0 {
		return model.TradeResult{Status: "swing-move", Label: "Swing DOWN (Sell)"}, true
	}
	return model.TradeResult{}, false
}
