package engine

import (
	"errors"
	"fmt"
)

// Error represents a failed controller command or derivation.
//
// Error kinds:
//   - User-recoverable preconditions: the command was rejected and nothing
//     was mutated (SERVER_NOT_SET, MATCH_ALREADY_STARTED, MATCH_NOT_IN_PROGRESS,
//     MATCH_CANCELLED, NOTHING_TO_UNDO, SAME_PLAYER, UNKNOWN_PLAYER)
//   - Invariant violations: a prior bug left the match inconsistent
//     (CORRUPT_LOG, STATISTICS_CORRUPTION). The match is halted.
//
// Errors match with errors.Is by code, so callers compare against the
// exported sentinels:
//
//	if errors.Is(err, engine.ErrMatchCancelled) { ... }
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// MatchID identifies the affected match, when known.
	MatchID string

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes controller errors.
type ErrorCode string

const (
	CodeServerNotSet         ErrorCode = "SERVER_NOT_SET"
	CodeMatchAlreadyStarted  ErrorCode = "MATCH_ALREADY_STARTED"
	CodeMatchNotInProgress   ErrorCode = "MATCH_NOT_IN_PROGRESS"
	CodeMatchCancelled       ErrorCode = "MATCH_CANCELLED"
	CodeNothingToUndo        ErrorCode = "NOTHING_TO_UNDO"
	CodeSamePlayer           ErrorCode = "SAME_PLAYER"
	CodeUnknownPlayer        ErrorCode = "UNKNOWN_PLAYER"
	CodeCorruptLog           ErrorCode = "CORRUPT_LOG"
	CodeStatisticsCorruption ErrorCode = "STATISTICS_CORRUPTION"
)

// Sentinels for errors.Is comparisons.
var (
	ErrServerNotSet         = &Error{Code: CodeServerNotSet, Message: "first server is not set"}
	ErrMatchAlreadyStarted  = &Error{Code: CodeMatchAlreadyStarted, Message: "match already started"}
	ErrMatchNotInProgress   = &Error{Code: CodeMatchNotInProgress, Message: "match is not in progress"}
	ErrMatchCancelled       = &Error{Code: CodeMatchCancelled, Message: "match is cancelled"}
	ErrNothingToUndo        = &Error{Code: CodeNothingToUndo, Message: "no points to undo"}
	ErrSamePlayer           = &Error{Code: CodeSamePlayer, Message: "a player cannot play against themselves"}
	ErrUnknownPlayer        = &Error{Code: CodeUnknownPlayer, Message: "player is not part of this match"}
	ErrCorruptLog           = &Error{Code: CodeCorruptLog, Message: "event log is corrupt"}
	ErrStatisticsCorruption = &Error{Code: CodeStatisticsCorruption, Message: "statistics are corrupt"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.MatchID != "" {
		msg += fmt.Sprintf(" (match=%s)", e.MatchID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is an invariant violation that halts the
// affected match.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCorruptLog) || errors.Is(err, ErrStatisticsCorruption)
}

// CodeOf returns the code of an *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, matchID, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), MatchID: matchID}
}

func wrapError(code ErrorCode, matchID, message string, err error) *Error {
	return &Error{Code: code, Message: message, MatchID: matchID, Err: err}
}
