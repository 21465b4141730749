// Package store provides the SQLite-backed journal of script faults and
// lifecycle transitions.
//
// The journal is append-only:
//   - faults: every fault a script reported, plus teardown faults from the domain
//   - transitions: every lifecycle state change of every script
//
// # Ordering
//
// Rows are ordered by seq, the insertion order, never by the wall-clock
// "at" column. Queries use ORDER BY seq ASC so that reads are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Journal adapts a Store to script.Reporter and script.StateObserver so the
// hosting domain can write to it without knowing about SQL.
package store
