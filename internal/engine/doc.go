// Package engine implements the match state machine of rally.
//
// The engine has two halves:
//
// Deriver (derive.go):
// Derive folds a rule set over an event log and returns the derived state:
// score, serving player and phase. It is pure and deterministic. Fold is the
// same algorithm applied one event at a time.
//
// Controller (controller.go):
// The Controller is the only component that mutates a match. It validates
// a command against the current state, appends or truncates one event,
// re-derives, and on a transition into or out of Finished calls the paired
// statistics hooks. Persistence happens through the Committer hook inside
// the same all-or-nothing scope.
//
// Match lifecycle:
//
//	in_progress ──add_point (winning)──▶ finished
//	     ▲                                  │
//	     └──────undo_last_point─────────────┘
//	in_progress ──cancel──▶ cancelled (terminal, log frozen)
//
// CRITICAL PATTERNS:
//
// Log as source of truth:
// Score, server, status and winner stored on a Match are a cache of the
// fold. Undo is truncate + replay, never an in-place decrement.
//
// Per-match exclusion:
// Each command holds the lock of its match id from validation to commit.
// Matches are independent; there is no cross-match locking.
//
// Halting:
// CORRUPT_LOG and STATISTICS_CORRUPTION mark the match as halted. Every
// later command on that match returns the original error.
package engine
