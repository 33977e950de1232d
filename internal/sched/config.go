package sched

import "fmt"

// Config holds the engine tunables.
//
// Expiry values are in ticks, FIFOBatch and WritesStarved are dispatch counts.
type Config struct {
	SyncReadExpire   Tick `json:"sync_read_expire"`
	SyncWriteExpire  Tick `json:"sync_write_expire"`
	AsyncReadExpire  Tick `json:"async_read_expire"`
	AsyncWriteExpire Tick `json:"async_write_expire"`

	// FIFOBatch is the number of dispatches between forced expiry sweeps,
	// minus one: the sweep runs once the batch counter exceeds it.
	FIFOBatch int `json:"fifo_batch"`

	// WritesStarved is the number of consecutive read dispatches tolerated
	// before writes become the preferred direction, minus one.
	WritesStarved int `json:"writes_starved"`
}

// Default tunables, in host time units of one tick.
const (
	DefaultSyncExpire    Tick = 1
	DefaultAsyncExpire   Tick = 2
	DefaultFIFOBatch          = 1
	DefaultWritesStarved      = 1
)

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		SyncReadExpire:   DefaultSyncExpire,
		SyncWriteExpire:  DefaultSyncExpire,
		AsyncReadExpire:  DefaultAsyncExpire,
		AsyncWriteExpire: DefaultAsyncExpire,
		FIFOBatch:        DefaultFIFOBatch,
		WritesStarved:    DefaultWritesStarved,
	}
}

// Validate rejects negative tunables.
func (c Config) Validate() error {
	expires := []struct {
		name string
		v    Tick
	}{
		{"sync_read_expire", c.SyncReadExpire},
		{"sync_write_expire", c.SyncWriteExpire},
		{"async_read_expire", c.AsyncReadExpire},
		{"async_write_expire", c.AsyncWriteExpire},
	}
	for _, e := range expires {
		if e.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", e.name, e.v)
		}
	}
	if c.FIFOBatch < 0 {
		return fmt.Errorf("fifo_batch must be non-negative, got %d", c.FIFOBatch)
	}
	if c.WritesStarved < 0 {
		return fmt.Errorf("writes_starved must be non-negative, got %d", c.WritesStarved)
	}
	return nil
}

// Expire returns the expiry interval for a class and direction.
func (c Config) Expire(class Class, dir Direction) Tick {
	switch {
	case class == Sync && dir == Read:
		return c.SyncReadExpire
	case class == Sync && dir == Write:
		return c.SyncWriteExpire
	case class == Async && dir == Read:
		return c.AsyncReadExpire
	default:
		return c.AsyncWriteExpire
	}
}
