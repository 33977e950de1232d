package sched

// expiredScanOrder is the fixed queue order of the expiry sweep.
// Async writes are allowed to linger longest, so they are cleared first.
var expiredScanOrder = [queueCount]int{
	queueIndex(Async, Write),
	queueIndex(Async, Read),
	queueIndex(Sync, Write),
	queueIndex(Sync, Read),
}

// Scheduler is the request-dispatch engine.
//
// Thread-safety: none. The host must serialize every call on a Scheduler,
// including the read-only helpers.
//
// INVARIANTS:
//   - every live item is in exactly one of the four queues
//   - an item leaves its queue only through Dispatch or by being absorbed
//     in Merge
//   - queues are FIFO by arrival, except that a merge survivor may take the
//     position of the item it absorbed
type Scheduler[K comparable] struct {
	q *arena[K]

	cfg    Config
	expire [2][2]Tick // [class][direction]

	batched int // dispatches since the last expiry sweep
	starved int // consecutive read dispatches since the last write

	observer Observer[K]
	closed   bool
}

// New creates a Scheduler with the given tunables.
//
// New panics with ErrCodeInvalidConfig if cfg does not validate.
func New[K comparable](cfg Config, opts ...Option[K]) *Scheduler[K] {
	if err := cfg.Validate(); err != nil {
		violate(ErrCodeInvalidConfig, nil, err.Error())
	}

	s := &Scheduler[K]{
		q:   newArena[K](),
		cfg: cfg,
	}
	for _, c := range Classes {
		for _, d := range Directions {
			s.expire[c][d] = cfg.Expire(c, d)
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Config returns the tunables the scheduler was built with.
func (s *Scheduler[K]) Config() Config {
	return s.cfg
}

// Enqueue appends id to the tail of the (class, dir) queue with a deadline
// of now plus that queue's expiry interval.
//
// Enqueueing an id that is already queued is a contract violation.
func (s *Scheduler[K]) Enqueue(id K, class Class, dir Direction, now Tick) Item[K] {
	s.checkOpen()
	if !class.Valid() || !dir.Valid() {
		violate(ErrCodeInvalidTag, id, "unknown class or direction")
	}
	if _, ok := s.q.lookup(id); ok {
		violate(ErrCodeDoubleEnqueue, id, "item is already queued")
	}

	slot := s.q.alloc(id, class, dir, now.Add(s.expire[class][dir]))
	s.q.pushBack(queueIndex(class, dir), slot)

	item := s.q.item(slot)
	if s.observer != nil {
		s.observer.OnEnqueue(item)
	}
	return item
}

// Merge coalesces absorbed into survivor.
//
// When both are queued and absorbed's deadline is earlier, survivor moves
// into absorbed's queue position and inherits its deadline. absorbed is then
// removed. An id that is not queued skips the repositioning; absorbed is
// still removed if it is queued.
func (s *Scheduler[K]) Merge(survivor, absorbed K) {
	s.checkOpen()
	if survivor == absorbed {
		violate(ErrCodeSelfMerge, survivor, "item merged into itself")
	}

	as, aok := s.q.lookup(absorbed)
	ss, sok := s.q.lookup(survivor)

	inherited := false
	if aok && sok {
		deadline := s.q.slots[as].deadline
		if deadline.Before(s.q.slots[ss].deadline) {
			s.q.unlink(ss)
			s.q.insertAfter(as, ss)
			s.q.slots[ss].deadline = deadline
			inherited = true
		}
	}
	if aok {
		s.q.remove(as)
	}

	if s.observer != nil {
		s.observer.OnMerge(survivor, absorbed, inherited)
	}
}

// ChooseExpired returns the first queue head whose deadline now is strictly
// after, scanning async write, async read, sync write, sync read. The item
// is not removed.
func (s *Scheduler[K]) ChooseExpired(now Tick) (Item[K], bool) {
	s.checkOpen()
	if slot := s.expiredSlot(now); slot != nilSlot {
		return s.q.item(slot), true
	}
	return Item[K]{}, false
}

// Choose returns the head the normal path would dispatch for the preferred
// direction: sync dir, sync opposite, async dir, async opposite. The item is
// not removed.
func (s *Scheduler[K]) Choose(dir Direction) (Item[K], bool) {
	s.checkOpen()
	if slot := s.chooseSlot(dir); slot != nilSlot {
		return s.q.item(slot), true
	}
	return Item[K]{}, false
}

// Dispatch removes and returns the next item to release, or false when
// every queue is empty.
func (s *Scheduler[K]) Dispatch(now Tick) (Item[K], bool) {
	s.checkOpen()

	slot := nilSlot
	path := PathNormal

	// The sweep resets the batch counter whether or not it finds anything.
	// A sweep that finds nothing falls through to the normal path on this
	// same call.
	if s.batched > s.cfg.FIFOBatch {
		s.batched = 0
		if slot = s.expiredSlot(now); slot != nilSlot {
			path = PathExpired
		}
	}

	if slot == nilSlot {
		dir := Read
		if s.starved > s.cfg.WritesStarved {
			dir = Write
		}
		if slot = s.chooseSlot(dir); slot == nilSlot {
			return Item[K]{}, false
		}
	}

	item := s.q.item(slot)
	s.q.remove(slot)

	s.batched++
	if item.Direction == Write {
		s.starved = 0
	} else {
		s.starved++
	}

	if s.observer != nil {
		s.observer.OnDispatch(item, path)
	}
	return item, true
}

// FormerNeighbor returns the item queued directly in front of id.
func (s *Scheduler[K]) FormerNeighbor(id K) (K, bool) {
	slot := s.mustLookup(id)
	return s.neighbor(s.q.slots[slot].prev)
}

// LatterNeighbor returns the item queued directly behind id.
func (s *Scheduler[K]) LatterNeighbor(id K) (K, bool) {
	slot := s.mustLookup(id)
	return s.neighbor(s.q.slots[slot].next)
}

// Close tears the scheduler down. Every queue must be empty.
func (s *Scheduler[K]) Close() {
	s.checkOpen()
	if n := s.q.len(); n != 0 {
		violate(ErrCodeNonEmptyTeardown, nil, "items still queued at teardown")
	}
	s.closed = true
}

// Contains reports whether id is queued.
func (s *Scheduler[K]) Contains(id K) bool {
	_, ok := s.q.lookup(id)
	return ok
}

// Lookup returns the queued item for id.
func (s *Scheduler[K]) Lookup(id K) (Item[K], bool) {
	slot, ok := s.q.lookup(id)
	if !ok {
		return Item[K]{}, false
	}
	return s.q.item(slot), true
}

// Len returns the number of queued items.
func (s *Scheduler[K]) Len() int {
	return s.q.len()
}

// QueueLen returns the number of items in the (class, dir) queue.
func (s *Scheduler[K]) QueueLen(class Class, dir Direction) int {
	return s.q.queueLen(queueIndex(class, dir))
}

// Queue returns the ids of the (class, dir) queue, head first.
func (s *Scheduler[K]) Queue(class Class, dir Direction) []K {
	q := queueIndex(class, dir)
	ids := make([]K, 0, s.q.queueLen(q))
	for slot := s.q.head(q); slot != nilSlot; slot = s.q.slots[slot].next {
		ids = append(ids, s.q.slots[slot].id)
	}
	return ids
}

// Stats returns the current counters.
func (s *Scheduler[K]) Stats() Stats {
	return Stats{Batched: s.batched, Starved: s.starved, Queued: s.q.len()}
}

func (s *Scheduler[K]) expiredSlot(now Tick) int32 {
	for _, q := range expiredScanOrder {
		slot := s.q.head(q)
		if slot != nilSlot && now.After(s.q.slots[slot].deadline) {
			return slot
		}
	}
	return nilSlot
}

func (s *Scheduler[K]) chooseSlot(dir Direction) int32 {
	order := [queueCount]int{
		queueIndex(Sync, dir),
		queueIndex(Sync, dir.Opposite()),
		queueIndex(Async, dir),
		queueIndex(Async, dir.Opposite()),
	}
	for _, q := range order {
		if slot := s.q.head(q); slot != nilSlot {
			return slot
		}
	}
	return nilSlot
}

func (s *Scheduler[K]) neighbor(slot int32) (K, bool) {
	if slot == nilSlot {
		var zero K
		return zero, false
	}
	return s.q.slots[slot].id, true
}

func (s *Scheduler[K]) mustLookup(id K) int32 {
	s.checkOpen()
	slot, ok := s.q.lookup(id)
	if !ok {
		violate(ErrCodeNotQueued, id, "item is not queued")
	}
	return slot
}

func (s *Scheduler[K]) checkOpen() {
	if s.closed {
		violate(ErrCodeClosed, nil, "scheduler has been torn down")
	}
}
