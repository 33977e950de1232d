// Package sched implements the deadline FIFO request-dispatch engine.
//
// The engine holds work items in four FIFO queues indexed by class
// (synchronous, asynchronous) and direction (read, write) and, on each
// dispatch opportunity, releases exactly one item.
//
// ARCHITECTURE:
//
// Single-Caller Engine:
// The engine performs no locking, never blocks and never reads a clock.
// The host serializes every call and passes the current Tick explicitly,
// which keeps the engine deterministic and trivially testable with
// synthetic time. See package host for a reference host.
//
// Dispatch Flow:
//  1. Every fifo_batch+1 dispatches the batch counter trips: it is reset and
//     the queue heads are scanned for an expired item (async write, async
//     read, sync write, sync read).
//  2. Otherwise, or when nothing expired, the normal path picks sync before
//     async, the preferred direction before the opposite one. Writes become
//     the preferred direction once more than writes_starved reads have been
//     dispatched in a row.
//  3. The chosen item leaves its queue and the counters are updated.
//
// Queue Storage:
// Queues are index-linked lists over an arena of slots owned by the engine.
// Removal and neighbour lookup are O(1); host items are referenced by an
// opaque comparable identifier.
//
// Contract violations (double enqueue, neighbour queries on an item that is
// not queued, teardown with items still queued) are host bugs and panic with
// a *ContractViolation.
package sched
