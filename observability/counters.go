// Package observability aggregates projection notifications into counters
// that the heartbeat reports periodically.
package observability

import (
	"context"
	"ledger-chat/domain/event"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Verified       uint64
	Projected      uint64
	CaughtUpSpaces uint64
	Failures       uint64
	LastProjected  time.Time
}

// Counters is an EventSink counting notifications of every space.
type Counters struct {
	log            *slog.Logger
	verified       atomic.Uint64
	projected      atomic.Uint64
	caughtUpSpaces atomic.Uint64
	failures       atomic.Uint64

	mu            sync.RWMutex
	progress      map[int64]float64
	lastProjected time.Time
}

func NewCounters(log *slog.Logger) *Counters {
	return &Counters{log: log, progress: make(map[int64]float64)}
}

func (c *Counters) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.Verifying:
		c.verified.Add(1)
		c.setProgress(evt.Space, evt.Fraction)
	case event.CaughtUp:
		c.caughtUpSpaces.Add(1)
		c.setProgress(evt.Space, 1)
	case event.Projected:
		c.projected.Add(1)
		c.mu.Lock()
		if evt.BlockTimestamp.After(c.lastProjected) {
			c.lastProjected = evt.BlockTimestamp
		}
		c.mu.Unlock()
	case event.ProjectionFailed:
		c.failures.Add(1)
	default:
		c.log.Debug("Unknown notification", "space", e.SpaceID())
	}
	return nil
}

// Progress returns the last known catch-up fraction of a space, 0 when unknown.
func (c *Counters) Progress(spaceID int64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress[spaceID]
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.RLock()
	last := c.lastProjected
	c.mu.RUnlock()
	return Snapshot{
		Verified:       c.verified.Load(),
		Projected:      c.projected.Load(),
		CaughtUpSpaces: c.caughtUpSpaces.Load(),
		Failures:       c.failures.Load(),
		LastProjected:  last,
	}
}

func (c *Counters) setProgress(spaceID int64, fraction float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[spaceID] = fraction
}
