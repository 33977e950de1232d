package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ids walks queue q head to tail.
func (a *arena[K]) ids(q int) []K {
	var out []K
	for s := a.head(q); s != nilSlot; s = a.slots[s].next {
		out = append(out, a.slots[s].id)
	}
	return out
}

// idsReverse walks queue q tail to head.
func (a *arena[K]) idsReverse(q int) []K {
	var out []K
	for s := a.queues[q].tail; s != nilSlot; s = a.slots[s].prev {
		out = append(out, a.slots[s].id)
	}
	return out
}

func TestArena_PushBackFIFO(t *testing.T) {
	a := newArena[string]()
	q := queueIndex(Sync, Read)

	for _, id := range []string{"A", "B", "C"} {
		a.pushBack(q, a.alloc(id, Sync, Read, 0))
	}

	assert.Equal(t, []string{"A", "B", "C"}, a.ids(q))
	assert.Equal(t, []string{"C", "B", "A"}, a.idsReverse(q))
	assert.Equal(t, 3, a.queueLen(q))
	assert.Equal(t, 3, a.len())
}

func TestArena_RemoveMiddleHeadTail(t *testing.T) {
	a := newArena[string]()
	q := queueIndex(Async, Write)

	slots := map[string]int32{}
	for _, id := range []string{"A", "B", "C", "D"} {
		slots[id] = a.alloc(id, Async, Write, 0)
		a.pushBack(q, slots[id])
	}

	a.remove(slots["B"])
	assert.Equal(t, []string{"A", "C", "D"}, a.ids(q))

	a.remove(slots["A"])
	assert.Equal(t, []string{"C", "D"}, a.ids(q))

	a.remove(slots["D"])
	assert.Equal(t, []string{"C"}, a.ids(q))
	assert.Equal(t, []string{"C"}, a.idsReverse(q))

	_, ok := a.lookup("B")
	assert.False(t, ok, "removed ids leave the index")
}

func TestArena_SlotsAreRecycled(t *testing.T) {
	a := newArena[int]()
	q := queueIndex(Sync, Write)

	keep := a.alloc(0, Sync, Write, 0)
	a.pushBack(q, keep)

	for i := 1; i <= 100; i++ {
		s := a.alloc(i, Sync, Write, 0)
		a.pushBack(q, s)
		a.remove(s)
	}

	assert.Len(t, a.slots, 2, "one live slot plus one recycled slot")
	assert.Equal(t, []int{0}, a.ids(q))
}

func TestArena_DrainResetsStorage(t *testing.T) {
	a := newArena[string]()
	q := queueIndex(Sync, Read)

	s1 := a.alloc("A", Sync, Read, 0)
	a.pushBack(q, s1)
	s2 := a.alloc("B", Sync, Read, 0)
	a.pushBack(q, s2)

	a.remove(s1)
	a.remove(s2)

	assert.Empty(t, a.slots)
	assert.Empty(t, a.free)
	assert.Equal(t, nilSlot, a.head(q))
}

func TestArena_InsertAfterAcrossQueues(t *testing.T) {
	a := newArena[string]()
	sr := queueIndex(Sync, Read)
	aw := queueIndex(Async, Write)

	p := a.alloc("P", Sync, Read, 0)
	a.pushBack(sr, p)
	x := a.alloc("X", Sync, Read, 0)
	a.pushBack(sr, x)

	w := a.alloc("W", Async, Write, 0)
	a.pushBack(aw, w)

	a.unlink(w)
	a.insertAfter(p, w)

	assert.Equal(t, []string{"P", "W", "X"}, a.ids(sr))
	assert.Equal(t, []string{"X", "W", "P"}, a.idsReverse(sr))
	assert.Empty(t, a.ids(aw))
	assert.Equal(t, 3, a.queueLen(sr))
	assert.Equal(t, 0, a.queueLen(aw))

	tail := a.alloc("T", Sync, Read, 0)
	a.insertAfter(x, tail)
	assert.Equal(t, tail, a.queues[sr].tail, "inserting behind the tail moves the tail")
	assert.Equal(t, []string{"P", "W", "X", "T"}, a.ids(sr))
}
