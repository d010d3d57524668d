// Package supervisor watches the streaming channels and forces a full
// resubscription when too many of them are down.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckInterval is how often channel health is evaluated.
const DefaultCheckInterval = 30 * time.Second

// ChannelManager is the control surface of the ingest manager.
type ChannelManager interface {
	ActiveCount() int
	ChannelCount() int
	Restart(ctx context.Context, symbols []string)
}

// Supervisor periodically compares open channels against the partition
// size. When fewer than half are open it tears the whole subscription down
// and rebuilds it from the current volume ranking. Each subscription cycle
// gets a fresh session id so reconnect storms are attributable in logs.
type Supervisor struct {
	mgr      ChannelManager
	universe func() []string
	interval time.Duration

	// OnStatus receives a human-readable health line after every check.
	OnStatus func(status string)

	mu       sync.Mutex
	session  uuid.UUID
	restarts int
}

func New(mgr ChannelManager, universe func() []string) *Supervisor {
	return &Supervisor{
		mgr:      mgr,
		universe: universe,
		interval: DefaultCheckInterval,
		session:  uuid.New(),
	}
}

// SetInterval overrides the health check cadence.
func (s *Supervisor) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Session returns the id of the current subscription cycle.
func (s *Supervisor) Session() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Restarts returns how many forced resubscriptions have happened.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Run blocks, checking health every interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[supervisor] session %s watching channels every %s", s.Session(), s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check evaluates channel health once and restarts the subscription when
// fewer than half the channels are open. Exposed for manual health probes.
func (s *Supervisor) Check(ctx context.Context) {
	total := s.mgr.ChannelCount()
	active := s.mgr.ActiveCount()

	status := fmt.Sprintf("Connected - %d/%d channels open", active, total)
	healthy := total == 0 || active*2 >= total
	if !healthy {
		status = fmt.Sprintf("Degraded - %d/%d channels open, resubscribing", active, total)
	}
	if s.OnStatus != nil {
		s.OnStatus(status)
	}
	if healthy {
		return
	}

	s.mu.Lock()
	s.session = uuid.New()
	s.restarts++
	session := s.session
	s.mu.Unlock()

	log.Printf("[supervisor] %d/%d channels open, forcing resubscription (session %s)",
		active, total, session)
	s.mgr.Restart(ctx, s.universe())
}
