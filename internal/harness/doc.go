// Package harness runs scripted match scenarios against the full command
// path: service, controller and a fresh in-memory store per scenario.
//
// Every command of a scenario produces one trace event holding the outcome
// and the derived state after it. Traces are deterministic (fixed clock,
// sequential match ids, player ids never appear in them), so they can be
// compared against golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	catalogue: ../catalogue.cue   # optional, imported before the match starts
//	mode: turbo-7                 # or inline rules:, never both
//	players: [Alice, Bob]
//	first_server: p1              # omitted: set it with a server step
//	flow:
//	  - do: point
//	    scorers: [p1, p1, p2]
//	  - do: point
//	    slot: p1
//	    repeat: 4
//	    expect:
//	      score: "7-1"
//	      status: finished
//	      winner: p1
//	  - do: undo
//	assertions:
//	  - type: trace_count
//	    command: point
//	    count: 7
//	  - type: final_state
//	    table: matches
//	    where: { id: match-0001 }
//	    expect: { score1: 6, status: in_progress }
//	  - type: replay
//
// # Commands
//
//   - point: record a point for slot (or each of scorers in order)
//   - undo: remove the last point
//   - server: choose the first server before any point
//   - cancel: cancel the match
//
// A step with expect.error must fail with that error code on its last
// command. Any other failing command fails the scenario.
//
// # Assertions
//
//   - trace_contains: a command with the given slot and outcome occurred
//   - trace_order: commands occurred in this order, gaps allowed
//   - trace_count: a command occurred exactly count times
//   - final_state: exactly one row of matches, users or game_modes has
//     the expected column values
//   - replay: the stored match replays to its cached state
package harness
