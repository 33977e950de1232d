package sched

import "fmt"

// Class is the priority class of an item.
type Class int

const (
	// Async items are background work that may linger in the queue.
	Async Class = iota
	// Sync items have a latency-sensitive caller waiting on them.
	Sync
)

// Classes lists every class in index order.
var Classes = [...]Class{Async, Sync}

func (c Class) String() string {
	switch c {
	case Async:
		return "async"
	case Sync:
		return "sync"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c == Async || c == Sync }

// ParseClass parses "sync" or "async".
func ParseClass(s string) (Class, error) {
	switch s {
	case "async":
		return Async, nil
	case "sync":
		return Sync, nil
	default:
		return 0, fmt.Errorf("unknown class %q: must be sync or async", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid class %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(b []byte) error {
	v, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Direction is the data direction of an item.
type Direction int

const (
	Read Direction = iota
	Write
)

// Directions lists every direction in index order.
var Directions = [...]Direction{Read, Write}

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Read || d == Write }

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Read {
		return Write
	}
	return Read
}

// ParseDirection parses "read" or "write".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	default:
		return 0, fmt.Errorf("unknown direction %q: must be read or write", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Item is a snapshot of a queued or dispatched work item.
//
// ID is the host's identifier and is opaque to the engine. Deadline is the
// tick after which the item counts as expired.
type Item[K comparable] struct {
	ID        K
	Class     Class
	Direction Direction
	Deadline  Tick
}

// Path records which branch of Dispatch released an item.
type Path int

const (
	// PathNormal is the class/direction preference path.
	PathNormal Path = iota
	// PathExpired is the forced expiry sweep.
	PathExpired
)

func (p Path) String() string {
	if p == PathExpired {
		return "expired"
	}
	return "normal"
}

// Stats is a read-only view of the engine counters.
type Stats struct {
	Batched int `json:"batched"`
	Starved int `json:"starved"`
	Queued  int `json:"queued"`
}
