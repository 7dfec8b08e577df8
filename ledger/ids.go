package ledger

import (
	"sync"
	"time"
)

// =============================================================================
// ID SOURCES - Monotonic identifier minting
// =============================================================================

// IDSource mints identifiers for new entities and log entries.
//
// Next must return an id strictly greater than floor and strictly greater
// than every id it returned before. The processor passes the largest id
// already present in the state as floor, so ids stay unique after imports.
type IDSource interface {
	Next(floor ID) ID
}

// Sequence derives ids from the wall clock in milliseconds, like the ids
// already present in historical snapshots, but never repeats or goes
// backwards: two ids minted within the same millisecond are consecutive.
type Sequence struct {
	mu   sync.Mutex
	now  func() time.Time
	last ID
}

// NewSequence creates a clock-derived sequence. A nil clock uses time.Now.
func NewSequence(now func() time.Time) *Sequence {
	if now == nil {
		now = time.Now
	}
	return &Sequence{now: now}
}

func (s *Sequence) Next(floor ID) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := ID(s.now().UnixMilli())
	next = max(next, s.last+1, floor+1)
	s.last = next
	return next
}

// Counter is a deterministic IDSource for tests and replays.
type Counter struct {
	mu   sync.Mutex
	last ID
}

// NewCounter starts counting after start.
func NewCounter(start ID) *Counter {
	return &Counter{last: start}
}

func (c *Counter) Next(floor ID) ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = max(c.last, floor) + 1
	return c.last
}
