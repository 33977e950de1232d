package sched

// nilSlot marks the absence of a slot (empty list end, free node).
const nilSlot int32 = -1

// queueCount is the number of FIFO queues: one per (class, direction).
const queueCount = 4

// queueIndex maps a class and direction to a queue number.
func queueIndex(class Class, dir Direction) int {
	return int(class)*2 + int(dir)
}

// node is one arena slot. A live node belongs to exactly one queue.
type node[K comparable] struct {
	id       K
	class    Class
	dir      Direction
	deadline Tick

	queue      int // queue number, -1 when the slot is free
	prev, next int32
}

// fifo is the head/tail pair of one index-linked queue.
type fifo struct {
	head, tail int32
	n          int
}

// arena owns every queued node and the four FIFO queues threaded through it.
//
// Freed slots are recycled through a free list so a steady workload does not
// grow the slot slice. The index maps host identifiers to their slot and is
// what makes double enqueue detectable.
type arena[K comparable] struct {
	slots  []node[K]
	free   []int32
	index  map[K]int32
	queues [queueCount]fifo
}

func newArena[K comparable]() *arena[K] {
	a := &arena[K]{
		slots: make([]node[K], 0, 64),
		index: make(map[K]int32),
	}
	for i := range a.queues {
		a.queues[i] = fifo{head: nilSlot, tail: nilSlot}
	}
	return a
}

// lookup returns the slot holding id.
func (a *arena[K]) lookup(id K) (int32, bool) {
	s, ok := a.index[id]
	return s, ok
}

// alloc stores a node in a free slot (or a new one) without linking it.
func (a *arena[K]) alloc(id K, class Class, dir Direction, deadline Tick) int32 {
	n := node[K]{id: id, class: class, dir: dir, deadline: deadline, queue: -1, prev: nilSlot, next: nilSlot}

	var s int32
	if last := len(a.free) - 1; last >= 0 {
		s = a.free[last]
		a.free = a.free[:last]
		a.slots[s] = n
	} else {
		s = int32(len(a.slots))
		a.slots = append(a.slots, n)
	}
	a.index[id] = s
	return s
}

// pushBack links slot s at the tail of queue q.
func (a *arena[K]) pushBack(q int, s int32) {
	f := &a.queues[q]
	n := &a.slots[s]
	n.queue = q
	n.prev = f.tail
	n.next = nilSlot
	if f.tail == nilSlot {
		f.head = s
	} else {
		a.slots[f.tail].next = s
	}
	f.tail = s
	f.n++
}

// insertAfter links slot s directly behind slot at, in at's queue.
func (a *arena[K]) insertAfter(at, s int32) {
	q := a.slots[at].queue
	f := &a.queues[q]
	n := &a.slots[s]
	n.queue = q
	n.prev = at
	n.next = a.slots[at].next
	if n.next == nilSlot {
		f.tail = s
	} else {
		a.slots[n.next].prev = s
	}
	a.slots[at].next = s
	f.n++
}

// unlink detaches slot s from its queue. The slot stays allocated.
func (a *arena[K]) unlink(s int32) {
	n := &a.slots[s]
	f := &a.queues[n.queue]
	if n.prev == nilSlot {
		f.head = n.next
	} else {
		a.slots[n.prev].next = n.next
	}
	if n.next == nilSlot {
		f.tail = n.prev
	} else {
		a.slots[n.next].prev = n.prev
	}
	f.n--
	n.queue = -1
	n.prev, n.next = nilSlot, nilSlot
}

// remove unlinks slot s and returns it to the free list.
func (a *arena[K]) remove(s int32) {
	a.unlink(s)
	delete(a.index, a.slots[s].id)

	// Zero the slot so the host identifier is not retained.
	a.slots[s] = node[K]{queue: -1, prev: nilSlot, next: nilSlot}
	a.free = append(a.free, s)

	// Reset storage once the arena drains so a burst does not pin its slots.
	if len(a.index) == 0 {
		a.slots = a.slots[:0]
		a.free = a.free[:0]
	}
}

// head returns the first slot of queue q.
func (a *arena[K]) head(q int) int32 {
	return a.queues[q].head
}

// item snapshots the node in slot s.
func (a *arena[K]) item(s int32) Item[K] {
	n := &a.slots[s]
	return Item[K]{ID: n.id, Class: n.class, Direction: n.dir, Deadline: n.deadline}
}

// queueLen returns the number of items in queue q.
func (a *arena[K]) queueLen(q int) int {
	return a.queues[q].n
}

// len returns the number of live items across all queues.
func (a *arena[K]) len() int {
	return len(a.index)
}
