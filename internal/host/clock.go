package host

import (
	"time"

	"github.com/roach88/fifosched/internal/sched"
)

// WallClock converts elapsed wall time into ticks of a fixed resolution.
// The first reading is tick 0.
type WallClock struct {
	start      time.Time
	resolution time.Duration
	now        func() time.Time
}

// NewWallClock starts a clock with the given tick resolution.
// A non-positive resolution is treated as one millisecond.
func NewWallClock(resolution time.Duration) *WallClock {
	return newWallClock(resolution, time.Now)
}

func newWallClock(resolution time.Duration, now func() time.Time) *WallClock {
	if resolution <= 0 {
		resolution = time.Millisecond
	}
	return &WallClock{start: now(), resolution: resolution, now: now}
}

// Now returns the number of whole ticks since the clock started.
func (c *WallClock) Now() sched.Tick {
	return sched.Tick(c.now().Sub(c.start) / c.resolution)
}

// Resolution returns the duration of one tick.
func (c *WallClock) Resolution() time.Duration { return c.resolution }

var _ sched.Clock = (*WallClock)(nil)
