package sched

// Observer receives engine events. It is called synchronously from inside
// the engine call that produced the event, after the engine counters have
// been updated. Implementations may use the read-only helpers (Stats, Len,
// Lookup) but must not mutate the scheduler.
type Observer[K comparable] interface {
	OnEnqueue(item Item[K])
	OnDispatch(item Item[K], path Path)
	// OnMerge reports a merge. inherited is true when the survivor took the
	// absorbed item's queue position and deadline.
	OnMerge(survivor, absorbed K, inherited bool)
}

// Option configures a Scheduler.
type Option[K comparable] func(*Scheduler[K])

// WithObserver installs an observer for engine events.
func WithObserver[K comparable](o Observer[K]) Option[K] {
	return func(s *Scheduler[K]) {
		s.observer = o
	}
}
