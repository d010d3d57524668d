// Package catalog loads the tradable-instrument universe from the exchange.
package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"crypto-screener/internal/model"
	"crypto-screener/pkg/binance"
)

const loadAttempts = 3

// Linear backoff between attempts: 2s, 4s.
var retryBackoff = 2 * time.Second

// Provider fetches the raw exchange catalog.
type Provider interface {
	GetExchangeInfo(ctx context.Context) (binance.ExchangeInfo, error)
}

// Load fetches the catalog and keeps only pairs open for trading. The
// fetch is retried with linear backoff because it gates startup.
func Load(ctx context.Context, provider Provider) ([]model.Instrument, error) {
	var lastErr error
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		info, err := provider.GetExchangeInfo(ctx)
		if err == nil {
			instruments := filterTradable(info)
			log.Printf("[catalog] loaded %d tradable of %d listed pairs",
				len(instruments), len(info.Symbols))
			return instruments, nil
		}
		lastErr = err
		if attempt < loadAttempts {
			delay := time.Duration(attempt) * retryBackoff
			log.Printf("[catalog] load attempt %d failed, retrying in %s: %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("catalog load after %d attempts: %w", loadAttempts, lastErr)
}

func filterTradable(info binance.ExchangeInfo) []model.Instrument {
	instruments := make([]model.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if !s.Tradable() {
			continue
		}
		instruments = append(instruments, model.Instrument{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Tradable:   true,
		})
	}
	return instruments
}
