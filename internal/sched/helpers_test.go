package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireViolation runs fn and asserts it panics with the given code.
func requireViolation(t *testing.T, code ViolationCode, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected contract violation %s", code)
		cv, ok := AsContractViolation(r)
		require.True(t, ok, "panic value %v is not a contract violation", r)
		assert.Equal(t, code, cv.Code)
	}()
	fn()
}

// drain dispatches until empty and returns the ids in dispatch order.
func drain(s *Scheduler[string], now Tick) []string {
	var got []string
	for {
		item, ok := s.Dispatch(now)
		if !ok {
			return got
		}
		got = append(got, item.ID)
	}
}

type recordedDispatch struct {
	ID   string
	Path Path
}

// recorder is an Observer that keeps every event.
type recorder struct {
	enqueued   []string
	dispatched []recordedDispatch
	merges     []string
}

func (r *recorder) OnEnqueue(item Item[string]) {
	r.enqueued = append(r.enqueued, item.ID)
}

func (r *recorder) OnDispatch(item Item[string], path Path) {
	r.dispatched = append(r.dispatched, recordedDispatch{ID: item.ID, Path: path})
}

func (r *recorder) OnMerge(survivor, absorbed string, inherited bool) {
	mark := "kept"
	if inherited {
		mark = "inherited"
	}
	r.merges = append(r.merges, survivor+"<-"+absorbed+":"+mark)
}
