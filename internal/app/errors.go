package app

import (
	"context"
	"errors"

	"github.com/roach88/rally/internal/compiler"
	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
)

// Kind groups errors by how a caller should react.
type Kind int

const (
	KindInternal Kind = iota // unexpected; includes halted matches
	KindInvalid              // bad input
	KindNotFound             // unknown user, game mode or match
	KindConflict             // command not allowed in the current state
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Classify returns the stable error code and kind of err.
func Classify(err error) (code string, kind Kind) {
	if code := engine.CodeOf(err); code != "" {
		switch code {
		case engine.CodeSamePlayer, engine.CodeUnknownPlayer:
			return string(code), KindInvalid
		case engine.CodeCorruptLog, engine.CodeStatisticsCorruption:
			return string(code), KindInternal
		default:
			return string(code), KindConflict
		}
	}

	var ce *compiler.CompileError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND", KindNotFound
	case errors.Is(err, store.ErrDuplicate):
		return "DUPLICATE", KindConflict
	case errors.Is(err, store.ErrStale):
		return "STALE_MATCH", KindConflict
	case errors.Is(err, ir.ErrInvalidRuleSet):
		return "INVALID_RULES", KindInvalid
	case errors.As(err, &ce):
		return "INVALID_CATALOGUE", KindInvalid
	case errors.Is(err, store.ErrInvalid):
		return "INVALID_INPUT", KindInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED", KindInternal
	default:
		return "INTERNAL", KindInternal
	}
}
