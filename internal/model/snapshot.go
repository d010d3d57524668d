package model

import (
	"encoding/json"
	"time"
)

// Signal is the per-instrument trading verdict.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// TradeResult classifies a (signal, confidence, change24h) triple into an
// actionable label for the presentation layer.
type TradeResult struct {
	Status string `json:"status"` // e.g. "trade-now", "swing-move", "risky-trade"
	Label  string `json:"label"`  // human-readable, e.g. "Trade Now (Long)"
}

// Verdict is the output of one indicator engine run.
type Verdict struct {
	Signal      Signal      `json:"signal"`
	Confidence  int         `json:"confidence"` // 0..95
	TradeResult TradeResult `json:"trade_result"`
}

// Snapshot is the current best-known state for one instrument.
// Price/volume fields are written only by the ingest path, signal fields only
// by the indicator path. LastUpdated only ever advances.
type Snapshot struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`

	Price     float64 `json:"price"`
	PrevPrice float64 `json:"prev_price"`
	Change24h float64 `json:"change_24h"` // percent

	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
	TradeCount  int64   `json:"trade_count"`

	// Heuristic buy/sell attribution of streamed quote-volume deltas.
	BuyVolume      float64 `json:"buy_volume"`
	SellVolume     float64 `json:"sell_volume"`
	DeltaVolumePct float64 `json:"delta_volume_pct"` // -100..100

	Signal      Signal      `json:"signal"`
	Confidence  int         `json:"confidence"` // 0..95
	TradeResult TradeResult `json:"trade_result"`

	LastUpdated time.Time `json:"last_updated"`
}

// JSON returns the JSON-encoded snapshot (ignoring errors for hot-path usage).
func (s *Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
