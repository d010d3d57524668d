// Package scheduler debounces and batches indicator recomputation so a burst
// of streaming updates coalesces into one pass instead of one recompute per
// tick.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"crypto-screener/internal/indicator"
	"crypto-screener/internal/store"
)

// debounce states. The set and timer are driven through this explicit
// machine instead of ad hoc timer-handle flags.
type state int

const (
	stateIdle state = iota
	statePending
	stateFiring
)

const (
	DefaultDebounce   = 100 * time.Millisecond
	DefaultBatchSize  = 10
	DefaultBatchYield = 5 * time.Millisecond
)

// Scheduler owns the deduplicated pending set and the single debounce timer.
// The first Enqueue after quiescence arms the timer; later enqueues during
// the window are absorbed without resetting it.
type Scheduler struct {
	snapshots *store.SnapshotStore
	history   *store.HistoryStore

	debounce   time.Duration
	batchSize  int
	batchYield time.Duration

	// OnBatch, when set, observes each drained batch. Used for metrics.
	OnBatch func(symbols int, elapsed time.Duration)

	mu      sync.Mutex
	st      state
	pending map[string]struct{}
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

func New(snapshots *store.SnapshotStore, history *store.HistoryStore) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		snapshots:  snapshots,
		history:    history,
		debounce:   DefaultDebounce,
		batchSize:  DefaultBatchSize,
		batchYield: DefaultBatchYield,
		st:         stateIdle,
		pending:    make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetDebounce overrides the debounce window. Not safe after first Enqueue.
func (s *Scheduler) SetDebounce(d time.Duration) { s.debounce = d }

// SetBatch overrides batch size and the yield between batches.
func (s *Scheduler) SetBatch(size int, yield time.Duration) {
	if size > 0 {
		s.batchSize = size
	}
	s.batchYield = yield
}

// Enqueue marks symbol for recomputation. Duplicate enqueues within one
// debounce window collapse into a single entry.
func (s *Scheduler) Enqueue(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.pending[symbol] = struct{}{}
	if s.st == stateIdle {
		s.st = statePending
		s.timer = time.AfterFunc(s.debounce, s.fire)
	}
}

// Pending reports the current pending-set size.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.st = stateIdle
		s.mu.Unlock()
		return
	}
	s.st = stateFiring
	drained := make([]string, 0, len(s.pending))
	for sym := range s.pending {
		drained = append(drained, sym)
	}
	s.pending = make(map[string]struct{})
	s.done.Add(1)
	s.mu.Unlock()
	defer s.done.Done()

	s.processBatches(drained)

	s.mu.Lock()
	s.st = stateIdle
	// Enqueues that arrived while firing re-arm the timer for a fresh window.
	if len(s.pending) > 0 && s.ctx.Err() == nil {
		s.st = statePending
		s.timer = time.AfterFunc(s.debounce, s.fire)
	}
	s.mu.Unlock()
}

func (s *Scheduler) processBatches(symbols []string) {
	for start := 0; start < len(symbols); start += s.batchSize {
		if s.ctx.Err() != nil {
			return
		}
		end := start + s.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		began := time.Now()
		for _, sym := range symbols[start:end] {
			s.recompute(sym)
		}
		if s.OnBatch != nil {
			s.OnBatch(end-start, time.Since(began))
		}
		if end < len(symbols) && s.batchYield > 0 {
			time.Sleep(s.batchYield)
		}
	}
}

// recompute re-runs the indicator engine for one symbol. Instruments
// without a historical series keep their degraded heuristic verdict and are
// skipped here; the periodic full recompute covers them.
func (s *Scheduler) recompute(symbol string) {
	series := s.history.Get(symbol)
	if series.Len() == 0 {
		return
	}
	snap, ok := s.snapshots.Get(symbol)
	if !ok {
		return
	}

	s.history.Pin(symbol)
	verdict := indicator.Compute(series, snap)
	s.history.Unpin(symbol)

	s.snapshots.ApplyVerdict(symbol, verdict)
}

// ForceRecomputeAll recomputes every tracked instrument synchronously,
// including the degraded ones without history. Manual-refresh entry point
// and the periodic fallback for instruments that never tick.
func (s *Scheduler) ForceRecomputeAll() int {
	n := 0
	for _, snap := range s.snapshots.All() {
		if s.ctx.Err() != nil {
			break
		}
		series := s.history.Get(snap.Symbol)
		if series.Len() > 0 {
			s.history.Pin(snap.Symbol)
		}
		verdict := indicator.Compute(series, snap)
		if series.Len() > 0 {
			s.history.Unpin(snap.Symbol)
		}
		s.snapshots.ApplyVerdict(snap.Symbol, verdict)
		n++
	}
	return n
}

// Stop cancels the debounce timer and waits for an in-flight firing pass.
// Pending symbols are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = make(map[string]struct{})
	s.st = stateIdle
	s.mu.Unlock()

	s.done.Wait()
	log.Printf("[scheduler] stopped")
}
