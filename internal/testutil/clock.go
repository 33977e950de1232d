package testutil

import (
	"sync"

	"github.com/roach88/fifosched/internal/sched"
)

// DeterministicClock is a manually driven tick source for tests.
//
// It implements sched.Clock. Time only moves when a test calls Advance or
// Set, so a scenario run twice produces identical dispatch decisions.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	now sched.Tick
}

// NewDeterministicClock creates a clock reading start.
func NewDeterministicClock(start sched.Tick) *DeterministicClock {
	return &DeterministicClock{now: start}
}

// Now returns the current tick.
func (c *DeterministicClock) Now() sched.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d ticks and returns the new reading.
// Negative d is ignored so the clock stays monotonic.
func (c *DeterministicClock) Advance(d sched.Tick) sched.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now += d
	}
	return c.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *DeterministicClock) Set(t sched.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// Reset puts the clock back to 0.
//
// Used for test reuse.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}
