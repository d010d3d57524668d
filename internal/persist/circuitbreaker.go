package persist

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // requests pass through
	BreakerOpen     BreakerState = 1 // requests rejected immediately
	BreakerHalfOpen BreakerState = 2 // one probe allowed through
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the Redis round-trips so an outage degrades the
// screener to in-memory-only operation instead of stalling the save loop.
// After maxFailures consecutive failures it opens and rejects calls for
// resetTimeout, then allows a single half-open probe.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	OnStateChange func(from, to BreakerState)
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        BreakerClosed,
	}
}

// Execute runs fn through the breaker. Returns ErrCircuitOpen without
// calling fn while the breaker is open and the reset timeout has not
// elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(BreakerHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == BreakerHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(BreakerOpen)
		}
		return err
	}

	if cb.state == BreakerHalfOpen {
		cb.transition(BreakerClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if to == BreakerClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
