package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for components that accept an
// injectable Now func.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t; a zero t starts at a fixed reference
// instant so tests are reproducible.
func NewClock(t time.Time) *Clock {
	if t.IsZero() {
		t = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return &Clock{now: t}
}

// Now is the injectable time source.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
