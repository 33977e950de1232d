// Package host is the reference host for the scheduling engine.
//
// The engine does no locking, never blocks and never reads a clock. A
// Dispatcher supplies all three: one mutex serializes every engine call, a
// Clock stamps enqueues and dispatches, and Next blocks until an item is
// available. Run pulls decisions in a loop, paced by a token bucket, and
// forwards each released item to a Sink.
//
// A Dispatcher never calls Dispatch on an empty engine, so the trace it
// records contains only state-changing dispatches and replays exactly.
package host
