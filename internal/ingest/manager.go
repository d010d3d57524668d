package ingest

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"crypto-screener/internal/model"
)

const (
	// DefaultThrottle bounds how often a full ticker update (volume
	// attribution plus recompute enqueue) is applied per instrument.
	DefaultThrottle             = 500 * time.Millisecond
	LowBandwidthThrottle        = time.Second
	lowBandwidthEnqueueFraction = 0.2
)

// Config carries the tunables for the streaming layer.
type Config struct {
	StreamBaseURL string
	GroupSize     int
	LowBandwidth  bool
	Throttle      time.Duration
}

// Manager partitions the monitored universe into combined-stream channels
// and supervises their lifecycles. Restart tears every channel down and
// rebuilds the partition from current volumes.
type Manager struct {
	cfg       Config
	snapshots TickerStore
	enqueue   func(symbol string)
	volumeOf  func(symbol string) float64

	// Optional hooks, set before Start.
	OnStateChange  func(channel int, state State)
	OnReconnect    func(channel int)
	OnDroppedFrame func(channel int, err error)
	OnTicker       func(symbol string, at time.Time)
	OnThrottled    func(symbol string)

	mu       sync.Mutex
	channels []*channel
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// TickerStore is the store surface the channels need. Satisfied by
// *store.SnapshotStore.
type TickerStore interface {
	UpdatePrice(symbol string, price float64, now time.Time) bool
	ApplyTicker(ev model.TickerEvent)
}

func NewManager(cfg Config, snapshots TickerStore, volumeOf func(string) float64, enqueue func(symbol string)) *Manager {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
		if cfg.LowBandwidth {
			cfg.Throttle = LowBandwidthThrottle
		}
	}
	return &Manager{
		cfg:       cfg,
		snapshots: snapshots,
		volumeOf:  volumeOf,
		enqueue:   enqueue,
	}
}

func (m *Manager) throttleInterval() time.Duration { return m.cfg.Throttle }

// shouldEnqueue decides whether a full update triggers a signal recompute.
// In low-bandwidth mode only a fraction of updates do.
func (m *Manager) shouldEnqueue() bool {
	if !m.cfg.LowBandwidth {
		return true
	}
	return rand.Float64() < lowBandwidthEnqueueFraction
}

// Start partitions symbols and opens one connection per group. It returns
// once the channel goroutines are launched; connection progress is reported
// through the hooks.
func (m *Manager) Start(ctx context.Context, symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.startLocked(ctx, symbols)
}

func (m *Manager) startLocked(ctx context.Context, symbols []string) {
	groups := Partition(symbols, m.volumeOf, m.cfg.GroupSize, m.cfg.LowBandwidth)
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.channels = make([]*channel, 0, len(groups))

	for i, group := range groups {
		ch := newChannel(m, i, group)
		m.channels = append(m.channels, ch)
		m.wg.Add(1)
		go func(ch *channel) {
			defer m.wg.Done()
			ch.run(runCtx)
		}(ch)
	}
	log.Printf("[ingest] started %d channels covering %d streams", len(groups), countStreams(groups))
}

// Stop closes every connection intentionally and waits for the channel
// goroutines to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	log.Printf("[ingest] stopped")
}

// Restart performs a full resubscription: every channel is torn down and
// the partition rebuilt from the current volume ranking. Retry counters do
// not carry over, fresh channels start clean.
func (m *Manager) Restart(ctx context.Context, symbols []string) {
	m.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	log.Printf("[ingest] restarting with %d symbols", len(symbols))
	m.startLocked(ctx, symbols)
}

// States reports the current state of every channel, indexed by channel.
func (m *Manager) States() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]State, len(m.channels))
	for i, ch := range m.channels {
		states[i] = ch.currentState()
	}
	return states
}

// ActiveCount is the number of channels currently open.
func (m *Manager) ActiveCount() int {
	n := 0
	for _, s := range m.States() {
		if s == StateOpen {
			n++
		}
	}
	return n
}

// ChannelCount is the size of the current partition.
func (m *Manager) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

func countStreams(groups [][]string) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}
