package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesByCode(t *testing.T) {
	err := newError(CodeNothingToUndo, "m1", "the event log is empty")

	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.NotErrorIs(t, err, ErrCorruptLog)

	wrapped := fmt.Errorf("undo: %w", err)
	assert.ErrorIs(t, wrapped, ErrNothingToUndo)
	assert.Equal(t, CodeNothingToUndo, CodeOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := newError(CodeMatchCancelled, "m1", "cannot add a point")
	assert.Equal(t, "MATCH_CANCELLED: cannot add a point (match=m1)", err.Error())

	cause := errors.New("boom")
	wrapped := wrapError(CodeStatisticsCorruption, "", "finish hook failed", cause)
	assert.Equal(t, "STATISTICS_CORRUPTION: finish hook failed: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{ErrCorruptLog, true},
		{ErrStatisticsCorruption, true},
		{fmt.Errorf("load: %w", newError(CodeCorruptLog, "m", "x")), true},
		{ErrServerNotSet, false},
		{ErrMatchAlreadyStarted, false},
		{ErrMatchNotInProgress, false},
		{ErrMatchCancelled, false},
		{ErrNothingToUndo, false},
		{errors.New("disk full"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.fatal, IsFatal(tt.err), "%v", tt.err)
	}
}

func TestCodeOf_NonEngineError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("x")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
