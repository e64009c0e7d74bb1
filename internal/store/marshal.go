package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/rally/internal/eventlog"
	"github.com/roach88/rally/internal/ir"
)

// timeLayout is used for every stored timestamp. Fixed-width UTC keeps
// lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalRules converts a rule set to canonical JSON TEXT for storage.
func marshalRules(rs ir.RuleSet) (string, error) {
	data, err := ir.MarshalCanonical(ir.CanonicalRules(rs))
	if err != nil {
		return "", fmt.Errorf("marshal rules: %w", err)
	}
	return string(data), nil
}

func unmarshalRules(data string) (ir.RuleSet, error) {
	var rs ir.RuleSet
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return ir.RuleSet{}, fmt.Errorf("unmarshal rules: %w", err)
	}
	return rs, nil
}

// marshalEvents converts an event log to its JSON tag array.
func marshalEvents(log eventlog.Log) (string, error) {
	data, err := log.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

func unmarshalEvents(data string) (eventlog.Log, error) {
	var log eventlog.Log
	if data == "" {
		return log, nil
	}
	if err := log.UnmarshalJSON([]byte(data)); err != nil {
		return eventlog.Log{}, fmt.Errorf("unmarshal events: %w", err)
	}
	return log, nil
}

// parsePhase maps a stored phase column back to a Phase. Finished phases need
// the winner slot, which is recovered from winner_id.
func parsePhase(kind string, winner ir.Slot) (ir.Phase, error) {
	switch kind {
	case ir.KindInProgress.String():
		return ir.PhaseInProgress(), nil
	case ir.KindDeuce.String():
		return ir.PhaseDeuce(), nil
	case ir.KindFinished.String():
		if !winner.Valid() {
			return ir.Phase{}, fmt.Errorf("finished phase without winner")
		}
		return ir.PhaseFinished(winner), nil
	default:
		return ir.Phase{}, fmt.Errorf("unknown phase %q", kind)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
