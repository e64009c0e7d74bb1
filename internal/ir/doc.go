// Package ir provides the shared value types for rally.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the scoring vocabulary
// (slots, rule sets, scores, phases) the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Value types only: RuleSet, Score, Phase and State are compared with ==
//   - Phase is a closed variant; a finished phase always carries a winner
//   - All JSON tags use snake_case
//   - Ordering of scoring events is positional, never by wall-clock time
package ir
