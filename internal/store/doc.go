// Package store provides SQLite-backed durable storage for players, game
// modes and matches.
//
// Tables:
//   - users: registered players and their win / played counters
//   - game_modes: named rule sets, addressed by id or slug
//   - matches: one row per match with its event log and the cached fold
//
// # Critical Patterns
//
// Event log as source of truth:
//   - matches.events stores the scorer tags in order
//   - score, server, phase and winner columns are a cache; readers re-derive
//
// All-or-nothing commits:
//   - Commit writes the match row and the statistics delta in one transaction
//   - matches.revision rejects writes based on a stale copy of a match
//
// Deterministic ordering:
//   - Every list query has a total ORDER BY ending in the primary key
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
