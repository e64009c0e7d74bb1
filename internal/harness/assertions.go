package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/store"
)

// validIdentifier matches the column names accepted in where clauses.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s (%s, server %s, %s)\n",
				event.Seq, event.Command, event.Slot, event.Outcome, event.Score, event.Server, event.Phase)
		}
	}

	return buf.String()
}

// matchesEvent reports whether event satisfies the command, slot and
// outcome of a trace_contains assertion. Empty fields match anything.
func matchesEvent(event TraceEvent, a Assertion) bool {
	if event.Command != a.Command {
		return false
	}
	if a.Slot != "" && event.Slot != a.Slot {
		return false
	}
	return a.Outcome == "" || event.Outcome == a.Outcome
}

// assertTraceContains checks if the trace contains a command matching the
// assertion's slot and outcome.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchesEvent(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("command %s slot=%q outcome=%q", assertion.Command, assertion.Slot, assertion.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if commands appear in the specified order.
// Commands don't need to be consecutive (intervening commands are allowed),
// and a command may appear more than once in the list.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Commands) && event.Command == assertion.Commands[next] {
			next++
		}
	}

	if next < len(assertion.Commands) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("commands in order: %v", assertion.Commands),
			Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(assertion.Commands), assertion.Commands[next]),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceCount checks if the command appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Command == assertion.Command {
			count++
		}
	}

	// Check exact count match
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Command),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertReplay verifies the final stored match with engine.VerifyMatch.
func assertReplay(m *engine.Match) error {
	if m == nil {
		return fmt.Errorf("replay assertion requires a final match")
	}
	report, err := engine.VerifyMatch(m)
	if err == nil && report.OK() {
		return nil
	}

	actual := fmt.Sprintf("deterministic=%t incremental=%t cache_consistent=%t",
		report.Deterministic, report.Incremental, report.CacheConsistent)
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     AssertReplay,
		Expected: fmt.Sprintf("match %s replays deterministically", m.ID),
		Actual:   actual,
	}
}

// stateTables are the tables final_state may query.
var stateTables = map[string]bool{"matches": true, "users": true, "game_modes": true}

// assertFinalState reads exactly one row of a table and compares the
// expected columns (subset semantics). Values are always bound as
// parameters; column names are checked against validIdentifier.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !stateTables[assertion.Table] {
		return fmt.Errorf("final_state: unknown table %q", assertion.Table)
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}
	query := "SELECT * FROM " + assertion.Table
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	row, err := queryOneRow(ctx, st, query, whereArgs)
	where := formatWhereClause(assertion.Where)
	switch {
	case errors.Is(err, errNoRow):
		return stateError(fmt.Sprintf("row in %s where %s", assertion.Table, where), "row not found")
	case errors.Is(err, errManyRows):
		return stateError(fmt.Sprintf("exactly one row in %s where %s", assertion.Table, where), "multiple rows matched (assertion is ambiguous)")
	case err != nil:
		return stateError(fmt.Sprintf("query table %s", assertion.Table), fmt.Sprintf("query error: %v", err))
	}

	for _, key := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[key]
		got, ok := row[key]
		if !ok {
			return stateError(fmt.Sprintf("column %q to exist", key), fmt.Sprintf("column %q not in %s", key, assertion.Table))
		}
		if !stateValuesEqual(want, got) {
			return stateError(fmt.Sprintf("%s = %v (type %T)", key, want, want), fmt.Sprintf("%s = %v (type %T)", key, got, got))
		}
	}
	return nil
}

var (
	errNoRow    = errors.New("no row")
	errManyRows = errors.New("more than one row")
)

// queryOneRow runs query and returns its only row as column -> value.
func queryOneRow(ctx context.Context, st *store.Store, query string, args []interface{}) (map[string]interface{}, error) {
	rows, err := st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, errNoRow
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	if rows.Next() {
		return nil, errManyRows
	}

	row := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, nil
}

func stateError(expected, actual string) *AssertionError {
	return &AssertionError{Type: AssertFinalState, Expected: expected, Actual: actual}
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, where[key])
	}
	return strings.Join(clauses, " AND "), args, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a SQLite column value.
// SQLite returns integers as int64, text as string or []byte, and stores
// booleans as 0/1.
func stateValuesEqual(expected, actual interface{}) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case string:
		got, ok := actual.(string)
		return ok && got == exp
	case int:
		got, ok := actual.(int64)
		return ok && got == int64(exp)
	case int64:
		got, ok := actual.(int64)
		return ok && got == exp
	case bool:
		if got, ok := actual.(bool); ok {
			return got == exp
		}
		got, ok := actual.(int64)
		return ok && (got != 0) == exp
	}
	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertReplay:
			err = assertReplay(result.Match)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	return msgs
}
