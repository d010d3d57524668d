package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ExchangeInfo is the subset of /api/v3/exchangeInfo the screener consumes.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo describes one listed trading pair.
type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

// Tradable reports whether the pair is currently open for trading.
func (s SymbolInfo) Tradable() bool {
	return s.Status == "TRADING"
}

// Ticker24h is one entry of /api/v3/ticker/24hr. Numeric fields arrive as
// strings on the wire.
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	Count              int64  `json:"count"`
}

// Kline is one OHLCV bar. The REST API encodes it as a positional JSON
// array, so it carries a custom unmarshaler.
type Kline struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// UnmarshalJSON decodes the positional kline array
// [openTime, open, high, low, close, volume, ...]; trailing fields are
// ignored.
func (k *Kline) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("kline: decode array: %w", err)
	}
	if len(raw) < 6 {
		return fmt.Errorf("kline: got %d fields, want at least 6", len(raw))
	}

	if err := json.Unmarshal(raw[0], &k.OpenTime); err != nil {
		return fmt.Errorf("kline: open time: %w", err)
	}
	for i, dst := range []*float64{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume} {
		var s string
		if err := json.Unmarshal(raw[i+1], &s); err != nil {
			return fmt.Errorf("kline: field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("kline: field %d: %w", i+1, err)
		}
		*dst = v
	}
	return nil
}

// StreamFrame is the envelope of a combined-stream message:
// {"stream":"btcusdt@ticker","data":{...}}.
type StreamFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// StreamTicker is the 24h ticker payload delivered over the combined
// stream. Field names follow the wire format.
type StreamTicker struct {
	EventType          string `json:"e"`
	Symbol             string `json:"s"`
	LastPrice          string `json:"c"`
	PriceChangePercent string `json:"P"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	TradeCount         int64  `json:"n"`
}

// ParseFloat converts a wire-format decimal string, returning an error that
// names the field on malformed input.
func ParseFloat(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return v, nil
}
