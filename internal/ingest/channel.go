package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto-screener/internal/model"
	"crypto-screener/pkg/binance"
)

// State is the lifecycle of one subscription channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Reconnect backoff: base × 1.5^attempt (factor capped at 6), plus a
// per-channel index stagger, capped overall.
const (
	backoffBase      = 5 * time.Second
	backoffMax       = 30 * time.Second
	backoffMaxFactor = 6
	indexStagger     = time.Second

	dialTimeoutPriority = 8 * time.Second
	dialTimeout         = 15 * time.Second
)

// channel owns one combined-stream connection and the throttle clock for
// its assigned symbols. It is destroyed and replaced on re-partition, never
// re-assigned in place.
type channel struct {
	index    int
	symbols  []string
	url      string
	priority bool

	mgr *Manager

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	retries int

	// lastFull is touched only by the read loop; one reader per connection.
	lastFull map[string]time.Time
}

func newChannel(mgr *Manager, index int, symbols []string) *channel {
	return &channel{
		index:    index,
		symbols:  symbols,
		url:      binance.CombinedStreamURL(mgr.cfg.StreamBaseURL, symbols),
		priority: index < 2,
		mgr:      mgr,
		state:    StateConnecting,
		lastFull: make(map[string]time.Time, len(symbols)),
	}
}

func (c *channel) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s && c.mgr.OnStateChange != nil {
		c.mgr.OnStateChange(c.index, s)
	}
}

func (c *channel) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// run dials, reads and reconnects until ctx is cancelled. An intentional
// close (ctx cancellation) never schedules a reconnect.
func (c *channel) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateClosed)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateClosed)
			if ctx.Err() != nil {
				return
			}
			log.Printf("[ingest] channel %d dial failed: %v", c.index, err)
			if !c.sleepBackoff(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.retries = 0
		c.mu.Unlock()
		c.setState(StateOpen)
		log.Printf("[ingest] channel %d open with %d streams", c.index, len(c.symbols))

		err = c.readLoop(ctx, conn)
		conn.Close()
		c.setState(StateClosed)
		if ctx.Err() != nil {
			return
		}

		log.Printf("[ingest] channel %d closed: %v", c.index, err)
		if c.mgr.OnReconnect != nil {
			c.mgr.OnReconnect(c.index)
		}
		if !c.sleepBackoff(ctx) {
			return
		}
	}
}

func (c *channel) dial(ctx context.Context) (*websocket.Conn, error) {
	timeout := dialTimeout
	if c.priority {
		timeout = dialTimeoutPriority
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial channel %d: %w", c.index, err)
	}
	return conn, nil
}

func (c *channel) sleepBackoff(ctx context.Context) bool {
	c.mu.Lock()
	attempt := c.retries
	c.retries++
	c.mu.Unlock()

	factor := math.Min(math.Pow(1.5, float64(attempt)), backoffMaxFactor)
	delay := time.Duration(float64(backoffBase)*factor) + time.Duration(c.index)*indexStagger
	if delay > backoffMax {
		delay = backoffMax
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage on teardown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.setState(StateClosing)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(payload)
	}
}

// handleFrame applies one combined-stream message. Malformed payloads are
// dropped and counted, never fatal; unknown symbols are ignored by the
// store (stale subscription after a catalog change).
func (c *channel) handleFrame(payload []byte) {
	var frame binance.StreamFrame
	if err := json.Unmarshal(payload, &frame); err != nil || len(frame.Data) == 0 {
		c.dropFrame(fmt.Errorf("frame envelope: %w", err))
		return
	}

	var tick binance.StreamTicker
	if err := json.Unmarshal(frame.Data, &tick); err != nil || tick.Symbol == "" {
		c.dropFrame(fmt.Errorf("ticker payload: %w", err))
		return
	}

	price, err := binance.ParseFloat("lastPrice", tick.LastPrice)
	if err != nil {
		c.dropFrame(err)
		return
	}

	now := time.Now()
	c.mgr.snapshots.UpdatePrice(tick.Symbol, price, now)
	if c.mgr.OnTicker != nil {
		c.mgr.OnTicker(tick.Symbol, now)
	}

	// Full update (change/volume/count/accumulators) is throttled per
	// instrument; only a full update triggers a recompute enqueue.
	if now.Sub(c.lastFull[tick.Symbol]) <= c.mgr.throttleInterval() {
		if c.mgr.OnThrottled != nil {
			c.mgr.OnThrottled(tick.Symbol)
		}
		return
	}

	changePct, err1 := binance.ParseFloat("priceChangePercent", tick.PriceChangePercent)
	volume, err2 := binance.ParseFloat("volume", tick.Volume)
	quoteVolume, err3 := binance.ParseFloat("quoteVolume", tick.QuoteVolume)
	if err1 != nil || err2 != nil || err3 != nil {
		c.dropFrame(fmt.Errorf("ticker numerics for %s", tick.Symbol))
		return
	}

	c.lastFull[tick.Symbol] = now
	c.mgr.snapshots.ApplyTicker(model.TickerEvent{
		Symbol:      tick.Symbol,
		LastPrice:   price,
		ChangePct:   changePct,
		Volume:      volume,
		QuoteVolume: quoteVolume,
		TradeCount:  tick.TradeCount,
		ReceivedAt:  now,
	})
	if c.mgr.shouldEnqueue() {
		c.mgr.enqueue(tick.Symbol)
	}
}

func (c *channel) dropFrame(err error) {
	if c.mgr.OnDroppedFrame != nil {
		c.mgr.OnDroppedFrame(c.index, err)
	}
}
