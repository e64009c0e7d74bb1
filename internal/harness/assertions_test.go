package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Command: CmdStart, Slot: "p1", Outcome: OutcomeOK, Score: "0-0", Server: "p1", Phase: "in_progress", Status: "in_progress"},
		{Seq: 2, Command: CmdPoint, Slot: "p1", Outcome: OutcomeOK, Score: "1-0", Server: "p1", Phase: "in_progress", Status: "in_progress"},
		{Seq: 3, Command: CmdUndo, Outcome: OutcomeOK, Score: "0-0", Server: "p1", Phase: "in_progress", Status: "in_progress"},
		{Seq: 4, Command: CmdUndo, Outcome: "NOTHING_TO_UNDO", Score: "0-0", Server: "p1", Phase: "in_progress", Status: "in_progress"},
		{Seq: 5, Command: CmdPoint, Slot: "p2", Outcome: OutcomeOK, Score: "0-1", Server: "p2", Phase: "in_progress", Status: "in_progress"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"command only", Assertion{Command: CmdUndo}, true},
		{"command and slot", Assertion{Command: CmdPoint, Slot: "p2"}, true},
		{"command and outcome", Assertion{Command: CmdUndo, Outcome: "NOTHING_TO_UNDO"}, true},
		{"wrong slot", Assertion{Command: CmdUndo, Slot: "p1"}, false},
		{"wrong outcome", Assertion{Command: CmdPoint, Outcome: "MATCH_CANCELLED"}, false},
		{"missing command", Assertion{Command: CmdCancel}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertTraceContains, ae.Type)
			assert.Len(t, ae.Trace, len(trace))
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Commands: []string{CmdStart, CmdPoint, CmdUndo}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Commands: []string{CmdUndo, CmdUndo, CmdPoint}}), "repeated commands")
	assert.NoError(t, assertTraceOrder(trace, Assertion{Commands: []string{CmdStart, CmdPoint}}), "gaps are allowed")

	err := assertTraceOrder(trace, Assertion{Commands: []string{CmdUndo, CmdStart}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing start")

	err = assertTraceOrder(trace, Assertion{Commands: []string{CmdUndo, CmdUndo, CmdUndo}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched 2 of 3")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Command: CmdPoint, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Command: CmdCancel, Count: 0}))

	err := assertTraceCount(trace, Assertion{Command: CmdUndo, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences of undo")
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "3 occurrences of point",
		Actual:   "2 occurrences",
		Trace:    sampleTrace()[:2],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 3 occurrences of point")
	assert.Contains(t, msg, "Actual: 2 occurrences")
	assert.Contains(t, msg, "[2] point p1 -> ok (1-0, server p1, in_progress)")
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected interface{}
		actual   interface{}
		want     bool
	}{
		{"string", "finished", "finished", true},
		{"string bytes", "finished", []byte("finished"), true},
		{"string mismatch", "finished", "cancelled", false},
		{"int vs int64", 11, int64(11), true},
		{"int mismatch", 11, int64(9), false},
		{"int64", int64(3), int64(3), true},
		{"bool false vs 0", false, int64(0), true},
		{"bool true vs 1", true, int64(1), true},
		{"bool true vs 0", true, int64(0), false},
		{"bool vs bool", true, true, true},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"value vs nil", "x", nil, false},
		{"string vs int", "11", int64(11), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]interface{}{"status": "finished", "id": "match-0001"})
	require.NoError(t, err)
	assert.Equal(t, "id = ? AND status = ?", sql)
	assert.Equal(t, []interface{}{"match-0001", "finished"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Empty(t, args)

	_, _, err = buildWhereClause(map[string]interface{}{"id; DROP TABLE users": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=match-0001 AND score1=3", formatWhereClause(map[string]interface{}{"score1": 3, "id": "match-0001"}))
}

func TestFinalStateFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "final_state_failures",
		Description: "each final_state assertion fails in a different way",
		FirstServer: "p1",
		Flow:        []Step{{Do: CmdPoint, Slot: "p1"}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "matches", Where: map[string]interface{}{"id": "match-0001"}, Expect: map[string]interface{}{"score1": 1, "status": "in_progress"}},
			{Type: AssertFinalState, Table: "matches", Where: map[string]interface{}{"id": "match-0001"}, Expect: map[string]interface{}{"score1": 2}},
			{Type: AssertFinalState, Table: "matches", Where: map[string]interface{}{"id": "match-0404"}, Expect: map[string]interface{}{"score1": 1}},
			{Type: AssertFinalState, Table: "users", Expect: map[string]interface{}{"wins": 0}},
			{Type: AssertFinalState, Table: "matches", Where: map[string]interface{}{"id": "match-0001"}, Expect: map[string]interface{}{"nope": 1}},
			{Type: AssertFinalState, Table: "sqlite_master", Expect: map[string]interface{}{"name": "users"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5, strings.Join(result.Errors, "\n"))

	assert.Contains(t, result.Errors[0], "score1 = 2 (type int)")
	assert.Contains(t, result.Errors[1], "row not found")
	assert.Contains(t, result.Errors[2], "multiple rows matched")
	assert.Contains(t, result.Errors[3], `column "nope" not in matches`)
	assert.Contains(t, result.Errors[4], `unknown table "sqlite_master"`)
}

func TestReplayAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "replay_assertion",
		Description: "stored match replays",
		FirstServer: "p2",
		Flow:        []Step{{Do: CmdPoint, Scorers: []string{"p1", "p2", "p2"}}},
		Assertions:  []Assertion{{Type: AssertReplay}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	assert.Error(t, assertReplay(nil))

	tampered := *result.Match
	tampered.State.Score.P1 = 9
	err = assertReplay(&tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_consistent=false")
}
