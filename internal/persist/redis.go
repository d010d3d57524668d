package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// DefaultAutosaveInterval is how often the in-memory state is flushed.
	DefaultAutosaveInterval = 5 * time.Minute

	defaultKey    = "screener:state"
	breakerTrips  = 5
	breakerReset  = 10 * time.Second
	shutdownFlush = 3 * time.Second
)

// ErrNoState is returned by Load when nothing has been persisted yet.
var ErrNoState = errors.New("no persisted state")

// Config configures the Redis-backed state store.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	Key      string        // storage key, defaults to "screener:state"
	MaxAge   time.Duration // staleness ceiling for restores
}

// Store persists the serialized screener state under a single key. All
// round-trips go through a circuit breaker so a Redis outage never blocks
// the pipeline.
type Store struct {
	client  *goredis.Client
	key     string
	maxAge  time.Duration
	breaker *CircuitBreaker

	// Optional hooks for metrics.
	OnSave          func(elapsed time.Duration, err error)
	OnBreakerChange func(from, to BreakerState)
}

// New connects and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = defaultKey
	}
	store := &Store{client: client, key: key, maxAge: cfg.MaxAge}
	store.breaker = NewCircuitBreaker(breakerTrips, breakerReset)
	store.breaker.OnStateChange = func(from, to BreakerState) {
		log.Printf("[persist] circuit breaker %s -> %s", from, to)
		if store.OnBreakerChange != nil {
			store.OnBreakerChange(from, to)
		}
	}

	log.Printf("[persist] connected to %s", cfg.Addr)
	return store, nil
}

// Client exposes the underlying Redis client for liveness probes.
func (s *Store) Client() *goredis.Client { return s.client }

// BreakerState reports the circuit breaker state for health surfaces.
func (s *Store) BreakerState() BreakerState { return s.breaker.CurrentState() }

// Save encodes and writes the state. A tripped breaker rejects the write
// immediately with ErrCircuitOpen.
func (s *Store) Save(ctx context.Context, state State) error {
	data, err := EncodeState(state, time.Now())
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.breaker.Execute(func() error {
		if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", s.key, err)
		}
		return nil
	})
	if s.OnSave != nil {
		s.OnSave(time.Since(start), err)
	}
	return err
}

// Load reads and decodes persisted state. Returns ErrNoState when the key
// is absent and ErrStale when the blob is older than the ceiling.
func (s *Store) Load(ctx context.Context) (State, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		var getErr error
		data, getErr = s.client.Get(ctx, s.key).Bytes()
		if getErr == goredis.Nil {
			data = nil
			return nil
		}
		if getErr != nil {
			return fmt.Errorf("redis get %s: %w", s.key, getErr)
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	if data == nil {
		return State{}, ErrNoState
	}
	return DecodeState(data, time.Now(), s.maxAge)
}

// AutosaveLoop flushes collect() every interval and once more on shutdown.
// Blocks until ctx is cancelled.
func (s *Store) AutosaveLoop(ctx context.Context, interval time.Duration, collect func() State) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlush)
			if err := s.Save(flushCtx, collect()); err != nil {
				log.Printf("[persist] shutdown save failed: %v", err)
			} else {
				log.Printf("[persist] state saved on shutdown")
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Save(ctx, collect()); err != nil {
				log.Printf("[persist] autosave failed: %v", err)
			}
		}
	}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
