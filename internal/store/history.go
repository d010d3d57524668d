package store

import (
	"sort"
	"sync"

	"crypto-screener/internal/model"
)

// HistoryStore tracks the bounded OHLCV series per instrument. Series are
// written by backfill and read by the scheduler; a pin keeps a series alive
// while a recompute batch holds it, deferring eviction by one cycle.
type HistoryStore struct {
	mu     sync.RWMutex
	series map[string]*model.Series
	pins   map[string]int
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		series: make(map[string]*model.Series),
		pins:   make(map[string]int),
	}
}

// Get returns the series for symbol, nil when none is tracked.
func (h *HistoryStore) Get(symbol string) *model.Series {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.series[symbol]
}

func (h *HistoryStore) Has(symbol string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.series[symbol]
	return ok
}

func (h *HistoryStore) Set(symbol string, s *model.Series) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s == nil {
		delete(h.series, symbol)
		return
	}
	h.series[symbol] = s
}

func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.series)
}

// Symbols returns every tracked symbol. Order is unspecified.
func (h *HistoryStore) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.series))
	for sym := range h.series {
		out = append(out, sym)
	}
	return out
}

// Pin marks the series as in use by an in-flight recompute. Pins nest.
func (h *HistoryStore) Pin(symbol string) {
	h.mu.Lock()
	h.pins[symbol]++
	h.mu.Unlock()
}

func (h *HistoryStore) Unpin(symbol string) {
	h.mu.Lock()
	if h.pins[symbol] > 1 {
		h.pins[symbol]--
	} else {
		delete(h.pins, symbol)
	}
	h.mu.Unlock()
}

// KeepTopByVolume evicts tracked series down to max entries, ranked by
// volumeOf descending. Pinned series are never evicted even when they rank
// below the cut; the overshoot is collected on the next cleanup cycle.
// Returns the evicted symbols.
func (h *HistoryStore) KeepTopByVolume(max int, volumeOf func(symbol string) float64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.series) <= max {
		return nil
	}

	ranked := make([]string, 0, len(h.series))
	for sym := range h.series {
		ranked = append(ranked, sym)
	}
	sort.Slice(ranked, func(i, j int) bool {
		vi, vj := volumeOf(ranked[i]), volumeOf(ranked[j])
		if vi != vj {
			return vi > vj
		}
		return ranked[i] < ranked[j]
	})

	var evicted []string
	for _, sym := range ranked[max:] {
		if h.pins[sym] > 0 {
			continue
		}
		delete(h.series, sym)
		evicted = append(evicted, sym)
	}
	return evicted
}
