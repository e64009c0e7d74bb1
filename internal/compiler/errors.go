package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a catalogue error with source position.
type CompileError struct {
	Mode    string
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	where := e.Field
	if e.Mode != "" {
		where = fmt.Sprintf("modes.%s.%s", e.Mode, e.Field)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info, preferring catalogue
	// positions over the built-in schema.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		pos := positions[0]
		for _, p := range positions {
			if p.Filename() != schemaFilename {
				pos = p
				break
			}
		}
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     pos,
			Err:     err,
		}
	}

	return err
}
