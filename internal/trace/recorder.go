package trace

import (
	"fmt"

	"github.com/roach88/fifosched/internal/sched"
)

// Recorder builds a trace from engine callbacks.
//
// It implements sched.Observer. Calls the engine does not report (empty
// dispatches, neighbour queries, teardown, violations) are added with the
// explicit methods. The caller sets the tick with SetTick before each timed
// call, since the observer callbacks do not carry it.
//
// Thread-safety: none. Recorder is driven under the same serialization as
// the scheduler it observes.
type Recorder[K comparable] struct {
	stats  func() sched.Stats
	now    sched.Tick
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder[K comparable]() *Recorder[K] {
	return &Recorder[K]{}
}

// Bind attaches the scheduler whose counters are copied into dispatch
// events. It is separate from NewRecorder because the scheduler takes the
// recorder as an option.
func (r *Recorder[K]) Bind(s interface{ Stats() sched.Stats }) {
	r.stats = s.Stats
}

// SetTick sets the clock reading attached to subsequent timed events.
func (r *Recorder[K]) SetTick(now sched.Tick) {
	r.now = now
}

// Record appends e with the next sequence number and returns it.
func (r *Recorder[K]) Record(e Event) Event {
	e.Seq = int64(len(r.events) + 1)
	r.events = append(r.events, e)
	return e
}

// Last returns the most recent event.
func (r *Recorder[K]) Last() (Event, bool) {
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Events returns a copy of the trace.
func (r *Recorder[K]) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder[K]) Len() int { return len(r.events) }

func (r *Recorder[K]) OnEnqueue(item sched.Item[K]) {
	r.Record(Event{
		Op:       OpEnqueue,
		Item:     key(item.ID),
		Class:    item.Class.String(),
		Dir:      item.Direction.String(),
		At:       int64(r.now),
		Deadline: int64(item.Deadline),
	})
}

func (r *Recorder[K]) OnDispatch(item sched.Item[K], path sched.Path) {
	e := r.dispatchEvent()
	e.Result = key(item.ID)
	e.Path = path.String()
	r.Record(e)
}

func (r *Recorder[K]) OnMerge(survivor, absorbed K, inherited bool) {
	result := MergeKept
	if inherited {
		result = MergeInherited
	}
	r.Record(Event{Op: OpMerge, Item: key(survivor), Other: key(absorbed), Result: result})
}

// DispatchEmpty records a dispatch that found every queue empty.
func (r *Recorder[K]) DispatchEmpty() {
	r.Record(r.dispatchEvent())
}

// Neighbor records a FormerNeighbor or LatterNeighbor query.
func (r *Recorder[K]) Neighbor(op Op, id, neighbor K, ok bool) {
	e := Event{Op: op, Item: key(id)}
	if ok {
		e.Result = key(neighbor)
	}
	r.Record(e)
}

// Close records teardown.
func (r *Recorder[K]) Close() {
	r.Record(Event{Op: OpClose})
}

// Violation records a request that raised a contract violation.
func (r *Recorder[K]) Violation(req Event, code sched.ViolationCode) Event {
	e := req.Request()
	e.Violation = string(code)
	return r.Record(e)
}

func (r *Recorder[K]) dispatchEvent() Event {
	e := Event{Op: OpDispatch, At: int64(r.now)}
	if r.stats != nil {
		st := r.stats()
		e.Batched = st.Batched
		e.Starved = st.Starved
	}
	return e
}

func key[K comparable](id K) string {
	if s, ok := any(id).(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

var _ sched.Observer[string] = (*Recorder[string])(nil)
