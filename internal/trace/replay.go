package trace

import (
	"fmt"

	"github.com/roach88/fifosched/internal/sched"
)

// Session pairs a string-keyed scheduler with the recorder observing it.
type Session struct {
	Sched    *sched.Scheduler[string]
	Recorder *Recorder[string]
}

// NewSession builds a fresh engine with a recorder attached.
func NewSession(cfg sched.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tunables: %w", err)
	}
	rec := NewRecorder[string]()
	s := sched.New(cfg, sched.WithObserver[string](rec))
	rec.Bind(s)
	return &Session{Sched: s, Recorder: rec}, nil
}

// Apply performs one request and returns the event it produced.
//
// A contract violation raised by the engine is recorded on the event, not
// returned as an error. Errors are reserved for requests that cannot be
// issued at all (unknown op, unparsable class or direction).
func (s *Session) Apply(req Event) (ev Event, err error) {
	req = req.Request()
	if !req.Op.Valid() {
		return Event{}, fmt.Errorf("unknown op %q", req.Op)
	}

	var class sched.Class
	var dir sched.Direction
	if req.Op == OpEnqueue {
		if class, err = sched.ParseClass(req.Class); err != nil {
			return Event{}, err
		}
		if dir, err = sched.ParseDirection(req.Dir); err != nil {
			return Event{}, err
		}
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cv, ok := sched.AsContractViolation(r)
		if !ok {
			panic(r)
		}
		ev = s.Recorder.Violation(req, cv.Code)
	}()

	rec := s.Recorder
	switch req.Op {
	case OpEnqueue:
		rec.SetTick(sched.Tick(req.At))
		s.Sched.Enqueue(req.Item, class, dir, sched.Tick(req.At))
	case OpDispatch:
		rec.SetTick(sched.Tick(req.At))
		if _, ok := s.Sched.Dispatch(sched.Tick(req.At)); !ok {
			rec.DispatchEmpty()
		}
	case OpMerge:
		s.Sched.Merge(req.Item, req.Other)
	case OpFormer:
		n, ok := s.Sched.FormerNeighbor(req.Item)
		rec.Neighbor(OpFormer, req.Item, n, ok)
	case OpLatter:
		n, ok := s.Sched.LatterNeighbor(req.Item)
		rec.Neighbor(OpLatter, req.Item, n, ok)
	case OpClose:
		s.Sched.Close()
		rec.Close()
	}

	ev, _ = rec.Last()
	return ev, nil
}

// Replay re-issues the requests of events against a fresh engine and
// returns the trace it produced.
func Replay(cfg sched.Config, events []Event) ([]Event, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if _, err := s.Apply(e); err != nil {
			return s.Recorder.Events(), fmt.Errorf("event %d: %w", e.Seq, err)
		}
	}
	return s.Recorder.Events(), nil
}
