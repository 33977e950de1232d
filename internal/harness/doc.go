// Package harness runs scripted scenarios against the dispatch engine.
//
// A scenario drives one fresh engine step by step from a YAML file, checks
// per-step expectations, evaluates assertions over the resulting trace and
// final state, and can compare the trace against a golden file.
//
// # Scenario Format
//
//	name: sync_preferred
//	description: "A sync read is dispatched before an older async write"
//	config: { fifo_batch: 1, writes_starved: 1 }
//	steps:
//	  - { op: enqueue, item: sr, class: sync, dir: read, at: 0 }
//	  - { op: enqueue, item: aw, class: async, dir: write }
//	  - { op: dispatch, at: 1, expect: sr }
//	  - { op: dispatch, advance: 2, expect: aw, path: expired }
//	  - { op: dispatch, expect: "" }
//	  - { op: merge, survivor: a, absorbed: b, expect: inherited }
//	  - { op: former, item: x, expect: y }
//	  - { op: enqueue, item: r1, class: sync, dir: read, violation: DOUBLE_ENQUEUE }
//	  - { op: close }
//	assertions:
//	  - { type: dispatch_order, items: [sr, aw] }
//	  - { type: dispatch_count, count: 2 }
//	  - { type: queue_len, class: sync, dir: read, count: 0 }
//	  - { type: queue, class: async, dir: write, items: [] }
//	  - { type: counters, batched: 0, starved: 1 }
//
// Time only moves when a step says so: at sets the clock to an absolute
// tick, advance moves it forward. A step with neither reuses the current
// tick. The clock never moves backwards.
//
// # Assertion Types
//
//   - dispatch_order: the released items, in order, are exactly items
//   - dispatch_count: exactly count items were released
//   - queue_len: the (class, dir) queue holds count items at the end
//   - queue: the (class, dir) queue holds exactly items, head first
//   - counters: the batch and starvation counters at the end
//
// # Golden Files
//
// The trace of every scenario is stored as one canonical JSON event per
// line in testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
