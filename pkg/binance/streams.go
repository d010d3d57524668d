package binance

import (
	"fmt"
	"strings"
)

// CombinedStreamURL builds the combined-stream URL subscribing each symbol's
// 24h ticker stream: wss://.../stream?streams=btcusdt@ticker/ethusdt@ticker.
func CombinedStreamURL(baseURL string, symbols []string) string {
	if baseURL == "" {
		baseURL = DefaultStreamBaseURL
	}
	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym) + "@ticker"
	}
	return fmt.Sprintf("%s/stream?streams=%s", baseURL, strings.Join(streams, "/"))
}
