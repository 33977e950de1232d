// Package store provides a SQLite-backed log of recorded scheduler runs.
//
// A run is one trace: either a scenario executed by the harness or a host
// drive session. The store is append-only tooling around the engine; the
// engine itself never persists anything.
//
//   - runs: one row per run, with its tunables and their digest
//   - events: the run's trace, one canonical JSON event per row
//
// # Ordering
//
// All ordering uses seq columns, never timestamps. Runs are listed in
// creation order and events are read ORDER BY seq ASC, so reading a run back
// yields the exact trace that was written.
//
// # Idempotency
//
// Events are keyed UNIQUE(run_id, seq). Appending an event that is already
// stored is a no-op, so a crashed writer can resend its whole batch.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
