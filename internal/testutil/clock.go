package testutil

import (
	"sync"
	"time"
)

// FixedClock is a controllable wall clock for tests.
//
// Now returns the same instant until Advance or Set is called, so start and
// end times in golden traces are byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// Epoch is the default instant of a FixedClock.
var Epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// NewFixedClock creates a clock frozen at Epoch.
func NewFixedClock() *FixedClock {
	return &FixedClock{now: Epoch}
}

// Now returns the current frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
