// Package backfill loads bounded OHLCV history for the monitored universe
// through a pool of concurrent workers pulling from a shared
// volume-prioritized queue.
package backfill

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"crypto-screener/internal/model"
	"crypto-screener/internal/store"
)

const (
	DefaultWorkers = 10
	DefaultTimeout = 5 * time.Second

	// Workers pause briefly after each sub-batch to stay under the REST
	// rate limit.
	subBatchSize  = 20
	subBatchPause = 5 * time.Millisecond

	// MaxSymbols bounds how many instruments get history at all. USDT
	// pairs take the larger slice of the budget.
	MaxSymbols       = 1500
	usdtSymbolsShare = 0.7
	otherSymbolShare = 0.3
)

// Provider fetches historical bars for one instrument, oldest first.
type Provider interface {
	Klines(ctx context.Context, symbol string, limit int) ([]model.Kline, error)
}

// Result summarizes one backfill pass. Failures are recorded, never retried
// within the pass; the periodic recompute covers gaps on the next cycle.
type Result struct {
	Completed int
	Failed    map[string]error
}

// Pool runs bounded-concurrency history loads and writes the resulting
// series into the history store.
type Pool struct {
	provider Provider
	history  *store.HistoryStore
	workers  int
	timeout  time.Duration
	limit    int

	// OnLoaded fires after a symbol's series is stored, off the store lock.
	OnLoaded func(symbol string)
}

func NewPool(provider Provider, history *store.HistoryStore) *Pool {
	return &Pool{
		provider: provider,
		history:  history,
		workers:  DefaultWorkers,
		timeout:  DefaultTimeout,
		limit:    model.SeriesCap,
	}
}

// SetWorkers overrides the worker count; values below 1 keep the default.
func (p *Pool) SetWorkers(n int) {
	if n >= 1 {
		p.workers = n
	}
}

// SetTimeout overrides the per-request timeout.
func (p *Pool) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// Prioritize orders candidates for backfill: USDT pairs by volume first,
// then the rest by volume, capped at the symbol budget.
func Prioritize(symbols []string, volumeOf func(string) float64) []string {
	var usdt, other []string
	for _, sym := range symbols {
		if strings.HasSuffix(sym, "USDT") {
			usdt = append(usdt, sym)
		} else {
			other = append(other, sym)
		}
	}
	byVolume := func(s []string) {
		sort.SliceStable(s, func(i, j int) bool {
			return volumeOf(s[i]) > volumeOf(s[j])
		})
	}
	byVolume(usdt)
	byVolume(other)

	usdtCap := int(float64(MaxSymbols) * usdtSymbolsShare)
	otherCap := int(float64(MaxSymbols) * otherSymbolShare)
	if len(usdt) > usdtCap {
		usdt = usdt[:usdtCap]
	}
	if len(other) > otherCap {
		other = other[:otherCap]
	}

	ordered := append(append(make([]string, 0, len(usdt)+len(other)), usdt...), other...)
	if len(ordered) > MaxSymbols {
		ordered = ordered[:MaxSymbols]
	}
	return ordered
}

// Run drains the queue with the configured worker count and blocks until
// every symbol is attempted or ctx is cancelled. Symbols still queued at
// cancellation are not counted as failures.
func (p *Pool) Run(ctx context.Context, symbols []string) Result {
	queue := make(chan string)
	res := Result{Failed: make(map[string]error)}
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processed := 0
			for sym := range queue {
				if err := p.loadOne(ctx, sym); err != nil {
					mu.Lock()
					res.Failed[sym] = err
					mu.Unlock()
				} else {
					mu.Lock()
					res.Completed++
					mu.Unlock()
					if p.OnLoaded != nil {
						p.OnLoaded(sym)
					}
				}
				processed++
				if processed%subBatchSize == 0 {
					time.Sleep(subBatchPause)
				}
			}
		}()
	}

	start := time.Now()
feed:
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		select {
		case queue <- sym:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	log.Printf("[backfill] loaded %d/%d series in %.1fs (%d failed)",
		res.Completed, len(symbols), time.Since(start).Seconds(), len(res.Failed))
	return res
}

func (p *Pool) loadOne(ctx context.Context, symbol string) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	klines, err := p.provider.Klines(reqCtx, symbol, p.limit)
	if err != nil {
		return fmt.Errorf("klines %s: %w", symbol, err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("klines %s: empty response", symbol)
	}

	series := model.NewSeries()
	for _, k := range klines {
		series.Append(k.Close, k.High, k.Low, k.Volume)
	}
	p.history.Set(symbol, series)
	return nil
}
