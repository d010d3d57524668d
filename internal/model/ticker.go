package model

import "time"

// TickerEvent is one normalized real-time ticker update from a streaming
// channel. Fields mirror the upstream 24h rolling-window ticker payload.
type TickerEvent struct {
	Symbol      string    `json:"symbol"`
	LastPrice   float64   `json:"last_price"`
	ChangePct   float64   `json:"change_pct"` // 24h change percent
	Volume      float64   `json:"volume"`     // base-asset volume
	QuoteVolume float64   `json:"quote_volume"`
	TradeCount  int64     `json:"trade_count"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Kline is one historical OHLCV bar, ordered oldest→newest in responses.
type Kline struct {
	OpenTime int64   `json:"open_time"` // epoch millis
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}
