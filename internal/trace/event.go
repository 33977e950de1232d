// Package trace records scheduler activity as an ordered event log.
//
// A trace is the unit of determinism: replaying the requests of a trace
// against a fresh engine with the same tunables must reproduce every event,
// byte for byte in canonical form. Scenario runs, golden files, recorded
// runs in the store and host drive runs all share this one format.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/fifosched/internal/canon"
)

// Op names an engine call.
type Op string

const (
	OpEnqueue  Op = "enqueue"
	OpDispatch Op = "dispatch"
	OpMerge    Op = "merge"
	OpFormer   Op = "former"
	OpLatter   Op = "latter"
	OpClose    Op = "close"
)

// Valid reports whether op is a known engine call.
func (op Op) Valid() bool {
	switch op {
	case OpEnqueue, OpDispatch, OpMerge, OpFormer, OpLatter, OpClose:
		return true
	}
	return false
}

// timed reports whether the call takes the host clock.
func (op Op) timed() bool {
	return op == OpEnqueue || op == OpDispatch
}

// Merge results.
const (
	MergeInherited = "inherited"
	MergeKept      = "kept"
)

// Event is one engine call and its outcome.
//
// The request half (Op, Item, Other, Class, Dir, At) is what Apply needs to
// repeat the call. The rest is the outcome:
//   - enqueue: Deadline
//   - dispatch: Result (empty when nothing was queued), Path, Batched, Starved
//   - merge: Result is MergeInherited or MergeKept
//   - former/latter: Result is the neighbour, empty at either end
//   - any op: Violation is the contract violation code the call raised
type Event struct {
	Seq   int64  `json:"seq"`
	Op    Op     `json:"op"`
	Item  string `json:"item,omitempty"`
	Other string `json:"other,omitempty"`
	Class string `json:"class,omitempty"`
	Dir   string `json:"dir,omitempty"`
	At    int64  `json:"at,omitempty"`

	Deadline  int64  `json:"deadline,omitempty"`
	Result    string `json:"result,omitempty"`
	Path      string `json:"path,omitempty"`
	Batched   int    `json:"batched,omitempty"`
	Starved   int    `json:"starved,omitempty"`
	Violation string `json:"violation,omitempty"`
}

// Request strips e down to the fields needed to repeat the call.
func (e Event) Request() Event {
	return Event{Op: e.Op, Item: e.Item, Other: e.Other, Class: e.Class, Dir: e.Dir, At: e.At}
}

// Dispatched reports whether e released an item.
func (e Event) Dispatched() bool {
	return e.Op == OpDispatch && e.Violation == "" && e.Result != ""
}

// Fields renders e for canonical encoding. Empty strings are omitted.
// Timed ops always carry at, and dispatches always carry their counters,
// so a zero reading is distinguishable from a missing one.
func (e Event) Fields() map[string]any {
	m := map[string]any{
		"seq": e.Seq,
		"op":  string(e.Op),
	}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("item", e.Item)
	put("other", e.Other)
	put("class", e.Class)
	put("dir", e.Dir)
	put("result", e.Result)
	put("path", e.Path)
	put("violation", e.Violation)

	if e.Op.timed() {
		m["at"] = e.At
	}
	if e.Op == OpEnqueue && e.Violation == "" {
		m["deadline"] = e.Deadline
	}
	if e.Op == OpDispatch && e.Violation == "" {
		m["batched"] = e.Batched
		m["starved"] = e.Starved
	}
	return m
}

// MarshalEvent returns the canonical JSON of a single event.
func MarshalEvent(e Event) ([]byte, error) {
	return canon.Marshal(e.Fields())
}

// Marshal returns the canonical JSON array of events.
func Marshal(events []Event) ([]byte, error) {
	list := make([]map[string]any, len(events))
	for i, e := range events {
		list[i] = e.Fields()
	}
	return canon.Marshal(list)
}

// MarshalLines returns one canonical JSON object per line. This is the
// golden file format: diffs stay readable and each line is still canonical.
func MarshalLines(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range events {
		b, err := MarshalEvent(e)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Digest identifies a trace by the canonical encoding of its events.
func Digest(events []Event) (string, error) {
	b, err := Marshal(events)
	if err != nil {
		return "", fmt.Errorf("trace digest: %w", err)
	}
	return canon.Digest(canon.DomainTrace, b), nil
}

// UnmarshalEvent decodes an event stored as JSON.
func UnmarshalEvent(data []byte) (Event, error) {
	var e Event
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if !e.Op.Valid() {
		return Event{}, fmt.Errorf("decode event: unknown op %q", e.Op)
	}
	return e, nil
}

// Diverge returns the index of the first event that differs between want
// and got, or -1 when the traces are identical.
func Diverge(want, got []Event) int {
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		a, errA := MarshalEvent(want[i])
		b, errB := MarshalEvent(got[i])
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return i
		}
	}
	if len(want) != len(got) {
		return n
	}
	return -1
}
