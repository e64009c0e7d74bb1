package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
	"github.com/roach88/rally/internal/testutil"
)

// DefaultPlayers are used when a scenario names none.
var DefaultPlayers = []string{"Alice", "Bob"}

// Harness is the test execution engine for one scenario.
type Harness struct {
	store  *store.Store
	svc    *app.Service
	logger *slog.Logger
	match  *engine.Match
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and service
// 2. Import the catalogue, register players and start the match
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewFixedClock()
	st.SetClock(clock.Now)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	svc, err := app.New(ctx, st, app.Options{
		Clock:  clock,
		IDs:    testutil.NewSequentialIDs("match"),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	h := &Harness{store: st, svc: svc, logger: logger}

	result := NewResult()
	if err := h.start(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	for i, step := range scenario.Flow {
		h.executeStep(ctx, i, step, result)
	}

	if result.Match, err = svc.GetMatch(ctx, h.match.ID); err != nil {
		return nil, fmt.Errorf("failed to read final match: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// start sets up the catalogue, players and mode, and starts the match.
func (h *Harness) start(ctx context.Context, s *Scenario, result *Result) error {
	if s.Catalogue != "" {
		if _, err := h.svc.ImportGameModes(ctx, s.Catalogue); err != nil {
			return err
		}
	}

	names := s.Players
	if len(names) == 0 {
		names = DefaultPlayers
	}
	ids := make([]ir.PlayerID, len(names))
	for i, name := range names {
		p, err := h.svc.CreateUser(ctx, store.UserInput{Name: name})
		if err != nil {
			return err
		}
		ids[i] = p.ID
	}

	mode := s.Mode
	if s.Rules != nil {
		gm, err := h.svc.CreateGameMode(ctx, ir.GameMode{Name: s.Name, Rules: *s.Rules})
		if err != nil {
			return err
		}
		mode = strconv.FormatInt(gm.ID, 10)
	}

	m, err := h.svc.StartMatch(ctx, app.StartInput{
		Player1:     ids[0],
		Player2:     ids[1],
		Mode:        mode,
		FirstServer: s.FirstServer,
	})
	if err != nil {
		return err
	}
	h.match = m
	result.addTrace(CmdStart, s.FirstServer, OutcomeOK, m)
	return nil
}

// executeStep runs every command of one step and validates the last outcome
// against the expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	var slots []string
	switch {
	case len(step.Scorers) > 0:
		slots = step.Scorers
	default:
		n := step.Repeat
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			slots = append(slots, step.Slot)
		}
	}

	expectErr := ""
	if step.Expect != nil {
		expectErr = step.Expect.Error
	}

	var last TraceEvent
	for i, slot := range slots {
		outcome := h.execute(ctx, step.Do, slot)
		last = result.addTrace(step.Do, slot, outcome, h.match)

		h.logger.Info("flow step completed",
			"step", index,
			"command", step.Do,
			"slot", slot,
			"outcome", outcome,
		)

		// Only the final command of a step may fail, and only if expected.
		if outcome != OutcomeOK && (i < len(slots)-1 || expectErr == "") {
			result.AddError(fmt.Sprintf("flow[%d]: %s %s failed with %s", index, step.Do, slot, outcome))
			return
		}
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, last, h.match) {
			result.AddError(fmt.Sprintf("flow[%d]: %s", index, msg))
		}
	}
}

// execute runs one command and returns its outcome. On failure the match
// is re-read so the trace shows the state the store holds.
func (h *Harness) execute(ctx context.Context, command, slot string) string {
	id := h.match.ID

	var (
		m   *engine.Match
		err error
	)
	switch command {
	case CmdPoint:
		m, err = h.svc.AddPoint(ctx, id, slot)
	case CmdUndo:
		m, err = h.svc.UndoLastPoint(ctx, id)
	case CmdServer:
		m, err = h.svc.SetFirstServer(ctx, id, slot)
	case CmdCancel:
		m, err = h.svc.CancelMatch(ctx, id)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		code, _ := app.Classify(err)
		if cur, getErr := h.svc.GetMatch(ctx, id); getErr == nil {
			h.match = cur
		}
		return code
	}
	h.match = m
	return OutcomeOK
}

// checkExpect compares the last trace event and match with an expect clause.
func checkExpect(e *Expect, ev TraceEvent, m *engine.Match) []string {
	var errs []string
	check := func(field, want, got string) {
		if want != "" && want != got {
			errs = append(errs, fmt.Sprintf("expected %s %q, got %q", field, want, got))
		}
	}

	wantOutcome := OutcomeOK
	if e.Error != "" {
		wantOutcome = e.Error
	}
	check("outcome", wantOutcome, ev.Outcome)
	check("score", e.Score, ev.Score)
	check("server", e.Server, ev.Server)
	check("phase", e.Phase, ev.Phase)
	check("status", e.Status, ev.Status)

	if e.Winner != "" {
		got := ""
		if w, ok := m.State.Winner(); ok {
			got = w.String()
		}
		want, _ := ir.ParseSlot(e.Winner)
		check("winner", want.String(), got)
	}
	return errs
}
