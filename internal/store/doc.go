// Package store provides SQLite-backed persistence for simulation runs.
//
// Two kinds of data are kept per named run:
//   - Scheduled events: the pending part of a schedule in its detached
//     form (parent id, method name, args, kwargs, memo tag and data).
//   - Resolutions: an append-only audit log of every TOEM argument a unit
//     resolved, stamped with simulation time.
//
// # Ordering
//
// Scheduled events are keyed by (run, at, seq), where at is the timestamp
// in Unix nanoseconds and seq the position within its bucket. Every query
// orders by that key, so reads are deterministic.
//
// # Integrity
//
// Arguments and memo data are stored as RFC 8785 canonical JSON. A run row
// carries the content hash of its event list; LoadSchedule recomputes it
// and fails on mismatch.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
