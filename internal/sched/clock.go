package sched

// Tick is a reading of the host clock.
//
// The engine never reads a clock itself. Hosts pass the current tick into
// Enqueue and Dispatch, which makes every decision reproducible from the
// sequence of calls alone.
//
// Comparisons are wrap-safe: a tick counter that overflows int64 still
// orders correctly as long as the two readings are less than half the
// range apart.
type Tick int64

// After reports whether t is strictly later than u.
func (t Tick) After(u Tick) bool {
	return int64(t-u) > 0
}

// Before reports whether t is strictly earlier than u.
func (t Tick) Before(u Tick) bool {
	return int64(u-t) > 0
}

// Add returns t advanced by d ticks.
func (t Tick) Add(d Tick) Tick {
	return t + d
}

// Clock is a host time source.
//
// Implementations must be monotonically non-decreasing.
type Clock interface {
	Now() Tick
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() Tick

// Now calls f.
func (f ClockFunc) Now() Tick { return f() }
