// Package binance wraps the subset of the exchange's public spot API the
// screener consumes: exchange info, 24h tickers, klines and the combined
// ticker stream. All endpoints are public; no credentials are involved.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultRESTBaseURL
	}
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("binance %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetExchangeInfo fetches the full listed-symbol catalog.
func (c *RESTClient) GetExchangeInfo(ctx context.Context) (ExchangeInfo, error) {
	var info ExchangeInfo
	err := c.get(ctx, c.baseURL+"/api/v3/exchangeInfo", &info)
	return info, err
}

// GetTickers24h fetches the 24h rolling ticker for every listed pair.
func (c *RESTClient) GetTickers24h(ctx context.Context) ([]Ticker24h, error) {
	var tickers []Ticker24h
	err := c.get(ctx, c.baseURL+"/api/v3/ticker/24hr", &tickers)
	return tickers, err
}

// GetKlines fetches up to limit bars ordered oldest→newest.
func (c *RESTClient) GetKlines(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]Kline, error) {
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, symbol, interval, limit)
	var klines []Kline
	err := c.get(ctx, endpoint, &klines)
	return klines, err
}
