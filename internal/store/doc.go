// Package store provides the SQLite-backed journal of reproducer runs.
//
// The journal records:
//   - Runs: one exploration or replay of a scenario
//   - Iterations: the sequence followed and registered in each iteration,
//     with any failure it produced
//   - Paths: every complete sequence explored, written when a run finishes
//
// # Critical Patterns
//
// Logical Ordering:
//   - Runs are ordered by id (UUIDv7, time-sortable), iterations by seq
//   - No wall-clock columns
//
// Idempotent Writes:
//   - ON CONFLICT DO NOTHING on every insert, so a retried write is harmless
//
// Repro Strings:
//   - Stored exactly as logged; replaying a failed iteration needs nothing
//     beyond the sequence column
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Versioning
//
// PRAGMA user_version holds SchemaVersion. A new file gets schema.sql and the
// version in one transaction; a journal from a newer build is refused with
// ErrNewerJournal rather than written with the wrong column layout.
package store
