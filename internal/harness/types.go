package harness

import "github.com/roach88/rally/internal/engine"

// TraceEvent is one executed command and the match state after it.
// A rejected command carries its error code as Outcome and the unchanged
// state.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Command string `json:"command"` // "start", "point", "undo", "server", "cancel"
	Slot    string `json:"slot,omitempty"`
	Outcome string `json:"outcome"` // "ok" or an error code
	Score   string `json:"score"`
	Server  string `json:"server"`
	Phase   string `json:"phase"`
	Status  string `json:"status"`
}

// OutcomeOK marks an accepted command.
const OutcomeOK = "ok"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every executed command in order, starting with "start".
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Match is the final match as stored.
	Match *engine.Match `json:"match,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace records a command outcome with the state of m.
func (r *Result) addTrace(command, slot, outcome string, m *engine.Match) TraceEvent {
	ev := TraceEvent{
		Seq:     int64(len(r.Trace) + 1),
		Command: command,
		Slot:    slot,
		Outcome: outcome,
		Score:   m.State.Score.String(),
		Server:  m.State.Server.String(),
		Phase:   m.State.Phase.Kind().String(),
		Status:  string(m.Status),
	}
	r.Trace = append(r.Trace, ev)
	return ev
}
