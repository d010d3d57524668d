// Package store holds the authoritative in-memory per-instrument state:
// current snapshots and bounded historical series. Both stores are sharded
// by symbol so the ingest, scheduler and backfill goroutines never contend
// on a single lock.
package store

import (
	"hash/fnv"
	"sync"
	"time"

	"crypto-screener/internal/model"
)

const snapshotShards = 64

// SignalChangeFunc observes signal transitions. Called outside the shard
// lock, after the new verdict is stored.
type SignalChangeFunc func(symbol string, from, to model.Signal, snap model.Snapshot)

type snapshotShard struct {
	mu    sync.RWMutex
	items map[string]*model.Snapshot
}

// SnapshotStore is the sharded map of per-instrument current state.
// Price and volume fields are written by the ingest path, signal fields by
// the scheduler path; each write touches exactly one shard.
type SnapshotStore struct {
	shards [snapshotShards]*snapshotShard

	hookMu         sync.RWMutex
	onSignalChange SignalChangeFunc
}

func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	for i := range s.shards {
		s.shards[i] = &snapshotShard{items: make(map[string]*model.Snapshot)}
	}
	return s
}

func shardIndex(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % snapshotShards)
}

func (s *SnapshotStore) shard(symbol string) *snapshotShard {
	return s.shards[shardIndex(symbol)]
}

// OnSignalChange registers the observer for signal transitions. Passing nil
// clears it.
func (s *SnapshotStore) OnSignalChange(fn SignalChangeFunc) {
	s.hookMu.Lock()
	s.onSignalChange = fn
	s.hookMu.Unlock()
}

// Seed creates a zero-value snapshot per instrument. Existing entries are
// kept untouched so a catalog reload never wipes live prices.
func (s *SnapshotStore) Seed(instruments []model.Instrument) {
	for _, inst := range instruments {
		sh := s.shard(inst.Symbol)
		sh.mu.Lock()
		if _, ok := sh.items[inst.Symbol]; !ok {
			sh.items[inst.Symbol] = &model.Snapshot{
				Symbol:     inst.Symbol,
				Signal:     model.SignalHold,
				Confidence: 50,
			}
		}
		sh.mu.Unlock()
	}
}

// Get returns a copy of the snapshot for symbol.
func (s *SnapshotStore) Get(symbol string) (model.Snapshot, bool) {
	sh := s.shard(symbol)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	snap, ok := sh.items[symbol]
	if !ok {
		return model.Snapshot{}, false
	}
	return *snap, true
}

// All returns copies of every snapshot. Order is unspecified.
func (s *SnapshotStore) All() []model.Snapshot {
	out := make([]model.Snapshot, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, snap := range sh.items {
			out = append(out, *snap)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *SnapshotStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Restore overwrites the stored price/volume/signal state for the symbol
// with a persisted snapshot. LastUpdated is set to now: restored data is
// treated as stale until the stream confirms it.
func (s *SnapshotStore) Restore(snap model.Snapshot, now time.Time) {
	sh := s.shard(snap.Symbol)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	snap.LastUpdated = now
	sh.items[snap.Symbol] = &snap
}

// SeedTicker populates a snapshot from a REST 24h ticker before streaming
// starts. No buy/sell attribution: the accumulators only track deltas seen
// live.
func (s *SnapshotStore) SeedTicker(ev model.TickerEvent, now time.Time) {
	sh := s.shard(ev.Symbol)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	snap, ok := sh.items[ev.Symbol]
	if !ok {
		return
	}
	snap.Price = ev.LastPrice
	snap.PrevPrice = ev.LastPrice
	snap.Change24h = ev.ChangePct
	snap.Volume = ev.Volume
	snap.QuoteVolume = ev.QuoteVolume
	snap.TradeCount = ev.TradeCount
	if now.After(snap.LastUpdated) {
		snap.LastUpdated = now
	}
}

// UpdatePrice applies a price tick immediately. Unknown symbols are ignored
// (stale subscription after a catalog change). Returns true when the price
// actually moved; only then is LastUpdated advanced, and it never moves
// backwards.
func (s *SnapshotStore) UpdatePrice(symbol string, price float64, now time.Time) bool {
	sh := s.shard(symbol)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	snap, ok := sh.items[symbol]
	if !ok {
		return false
	}
	if price == snap.Price {
		snap.PrevPrice = price
		return false
	}
	snap.PrevPrice = snap.Price
	snap.Price = price
	if now.After(snap.LastUpdated) {
		snap.LastUpdated = now
	}
	return true
}

// ApplyTicker applies a throttled full market update: 24h change, volumes,
// trade count and the buy/sell accumulators. The growth in cumulative quote
// volume since the previous full update is attributed 70/30 toward the
// direction of the last price move, 50/50 when flat.
func (s *SnapshotStore) ApplyTicker(ev model.TickerEvent) {
	sh := s.shard(ev.Symbol)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	snap, ok := sh.items[ev.Symbol]
	if !ok {
		return
	}

	volumeChange := ev.QuoteVolume - snap.QuoteVolume
	if volumeChange > 0 {
		priceDelta := snap.Price - snap.PrevPrice
		buyFactor := 0.5
		if priceDelta > 0 {
			buyFactor = 0.7
		} else if priceDelta < 0 {
			buyFactor = 0.3
		}
		snap.BuyVolume += volumeChange * buyFactor
		snap.SellVolume += volumeChange * (1 - buyFactor)
	}

	total := snap.BuyVolume + snap.SellVolume
	if total <= 0 {
		total = 1
	}
	snap.DeltaVolumePct = (snap.BuyVolume - snap.SellVolume) / total * 100

	snap.Change24h = ev.ChangePct
	snap.Volume = ev.Volume
	snap.QuoteVolume = ev.QuoteVolume
	snap.TradeCount = ev.TradeCount
}

// ApplyVerdict writes the indicator verdict for symbol and reports whether
// the stored signal changed. The change observer fires outside the lock.
func (s *SnapshotStore) ApplyVerdict(symbol string, v model.Verdict) bool {
	sh := s.shard(symbol)
	sh.mu.Lock()
	snap, ok := sh.items[symbol]
	if !ok {
		sh.mu.Unlock()
		return false
	}
	from := snap.Signal
	snap.Signal = v.Signal
	snap.Confidence = v.Confidence
	snap.TradeResult = v.TradeResult
	changed := from != v.Signal
	copied := *snap
	sh.mu.Unlock()

	if changed {
		s.hookMu.RLock()
		fn := s.onSignalChange
		s.hookMu.RUnlock()
		if fn != nil {
			fn(symbol, from, v.Signal, copied)
		}
	}
	return changed
}

// QuoteVolumeOf returns the current 24h quote volume for symbol, 0 when
// unknown. Used to rank instruments for partitioning and eviction.
func (s *SnapshotStore) QuoteVolumeOf(symbol string) float64 {
	snap, ok := s.Get(symbol)
	if !ok {
		return 0
	}
	return snap.QuoteVolume
}

// TotalQuoteVolume sums the 24h quote volume over the whole universe.
func (s *SnapshotStore) TotalQuoteVolume() float64 {
	total := 0.0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, snap := range sh.items {
			total += snap.QuoteVolume
		}
		sh.mu.RUnlock()
	}
	return total
}

// RescaleAccumulators scales the buy/sell accumulators down by 90% wherever
// either side exceeds the ceiling, keeping their ratio intact. Returns the
// number of snapshots rescaled.
func (s *SnapshotStore) RescaleAccumulators(ceiling float64) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, snap := range sh.items {
			if snap.BuyVolume > ceiling || snap.SellVolume > ceiling {
				snap.BuyVolume *= 0.1
				snap.SellVolume *= 0.1
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}
