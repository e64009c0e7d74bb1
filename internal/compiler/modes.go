// Package compiler loads game-mode catalogues written in CUE.
//
// A catalogue names rule sets under a top-level modes struct:
//
//	modes: "Club 15": {
//		points_to_win:        15
//		serves_before_change: 3
//		description:          "Evening league"
//	}
//
// Every entry is unified with a schema that supplies defaults (deuce on,
// one serve each in deuce, free rotation) and then validated with
// ir.RuleSet.Validate.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/rally/internal/ir"
)

const schemaFilename = "schema.cue"

// schema constrains and completes every catalogue entry.
const schema = `
#Mode: {
	points_to_win:        int & >=1
	serves_before_change: int & >=1 | *2
	deuce_enabled:        bool | *true
	serves_in_deuce:      int & >=1 | *1
	serve_type:           *"free" | "fixed"
	description:          string | *""
}

modes: [string]: #Mode
`

// LoadFile compiles the catalogue at path.
func LoadFile(path string) ([]ir.GameMode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Compile(data, path)
}

// Compile compiles catalogue source. filename is used in error positions.
func Compile(src []byte, filename string) ([]ir.GameMode, error) {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schema, cue.Filename(schemaFilename))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("compile catalogue schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schemaVal.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileGameModes(v.LookupPath(cue.ParsePath("modes")))
}

// CompileGameModes compiles every field of a modes struct, in source order.
// A missing modes value yields an empty catalogue.
func CompileGameModes(v cue.Value) ([]ir.GameMode, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var modes []ir.GameMode
	for iter.Next() {
		gm, err := CompileGameMode(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		modes = append(modes, gm)
	}
	return modes, nil
}

// CompileGameMode converts one catalogue entry into a GameMode. The entry
// must already be unified with the schema.
func CompileGameMode(name string, v cue.Value) (ir.GameMode, error) {
	if err := v.Err(); err != nil {
		return ir.GameMode{}, formatCUEError(err)
	}

	gm := ir.GameMode{Name: name}
	var err error

	if gm.Rules.PointsToWin, err = intField(name, v, "points_to_win"); err != nil {
		return ir.GameMode{}, err
	}
	if gm.Rules.ServesBeforeChange, err = intField(name, v, "serves_before_change"); err != nil {
		return ir.GameMode{}, err
	}
	if gm.Rules.ServesInDeuce, err = intField(name, v, "serves_in_deuce"); err != nil {
		return ir.GameMode{}, err
	}
	if gm.Rules.DeuceEnabled, err = lookup(v, "deuce_enabled").Bool(); err != nil {
		return ir.GameMode{}, fieldError(name, v, "deuce_enabled", err)
	}
	serveType, err := lookup(v, "serve_type").String()
	if err != nil {
		return ir.GameMode{}, fieldError(name, v, "serve_type", err)
	}
	if gm.Rules.ServeType, err = ir.ParseServeType(serveType); err != nil {
		return ir.GameMode{}, fieldError(name, v, "serve_type", err)
	}
	if gm.Description, err = lookup(v, "description").String(); err != nil {
		return ir.GameMode{}, fieldError(name, v, "description", err)
	}

	if err := gm.Rules.Validate(); err != nil {
		return ir.GameMode{}, &CompileError{
			Mode:    name,
			Field:   "rules",
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return gm, nil
}

// lookup resolves a field and its default.
func lookup(v cue.Value, field string) cue.Value {
	fv := v.LookupPath(cue.ParsePath(field))
	if d, ok := fv.Default(); ok {
		return d
	}
	return fv
}

func intField(mode string, v cue.Value, field string) (int, error) {
	fv := lookup(v, field)
	if !fv.Exists() {
		return 0, &CompileError{Mode: mode, Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, fieldError(mode, v, field, err)
	}
	return int(n), nil
}

func fieldError(mode string, v cue.Value, field string, err error) error {
	pos := v.LookupPath(cue.ParsePath(field)).Pos()
	if !pos.IsValid() {
		pos = v.Pos()
	}
	return &CompileError{Mode: mode, Field: field, Message: err.Error(), Pos: pos, Err: err}
}
