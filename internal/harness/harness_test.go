package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rally/internal/ir"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Equal(t, CmdStart, result.Trace[0].Command)
			require.NotNil(t, result.Match)
			assert.Equal(t, "match-0001", result.Match.ID)
		})
	}
}

func TestRun_TraceReflectsEveryCommand(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "trace",
		Description: "one event per command",
		Mode:        "turbo-7",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdPoint, Slot: "p2", Repeat: 3},
			{Do: CmdUndo},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 5)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, OutcomeOK, ev.Outcome)
	}
	assert.Equal(t, "0-3", result.Trace[3].Score)
	assert.Equal(t, "0-2", result.Trace[4].Score)
	assert.Equal(t, ir.Score{P2: 2}, result.Match.State.Score)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "mismatch",
		Description: "wrong score expectation",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdPoint, Slot: "p1", Expect: &Expect{Score: "0-1", Server: "p1"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected score "0-1", got "1-0"`)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "unexpected",
		Description: "undo on an empty log without an expected error",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdUndo},
			{Do: CmdPoint, Slot: "p1"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "failed with NOTHING_TO_UNDO")

	// The flow continues after a failed step.
	assert.Len(t, result.Trace, 3)
}

func TestRun_ErrorOnlyAllowedOnLastRepetition(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "early_error",
		Description: "the second of three undos fails",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdPoint, Slot: "p1"},
			{Do: CmdUndo, Repeat: 3, Expect: &Expect{Error: "NOTHING_TO_UNDO"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "flow[1]: undo  failed with NOTHING_TO_UNDO")
	// Execution of the step stops at the failure.
	assert.Len(t, result.Trace, 4)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "missing_error",
		Description: "expects a rejection that never happens",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdPoint, Slot: "p1", Expect: &Expect{Error: "MATCH_CANCELLED"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), `expected outcome "MATCH_CANCELLED", got "ok"`)
}

func TestRun_WinnerExpectation(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "winner",
		Description: "winner is checked by slot",
		Mode:        "turbo-7",
		FirstServer: "p1",
		Flow: []Step{
			{Do: CmdPoint, Slot: "p2", Repeat: 7, Expect: &Expect{Winner: "p1"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), `expected winner "p1", got "p2"`)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Description: "no flow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_UnknownModeFailsToStart(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "unknown_mode",
		Description: "mode does not exist",
		Mode:        "nope",
		Flow:        []Step{{Do: CmdCancel}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start match")
}

func TestRun_InvalidInlineRules(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "bad_rules",
		Description: "points_to_win of zero",
		Rules:       &ir.RuleSet{PointsToWin: 0, ServesBeforeChange: 1, ServesInDeuce: 1},
		Flow:        []Step{{Do: CmdCancel}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrInvalidRuleSet)
}
