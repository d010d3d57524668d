package binance

// REST and stream endpoints for the spot exchange.
const (
	DefaultRESTBaseURL   = "https://api.binance.com"
	DefaultStreamBaseURL = "wss://stream.binance.com:9443"
)

// KlineInterval is the candle width used for history requests.
type KlineInterval string

const (
	Interval1m  KlineInterval = "1m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval1h  KlineInterval = "1h"
	Interval4h  KlineInterval = "4h"
	Interval1d  KlineInterval = "1d"
)

// DefaultKlineLimit matches the bounded series window: one page of hourly
// candles fills it exactly.
const DefaultKlineLimit = 200
