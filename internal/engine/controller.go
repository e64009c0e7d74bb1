package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rally/internal/eventlog"
	"github.com/roach88/rally/internal/ir"
)

// StatsEffect is the statistics side effect of one committed command.
type StatsEffect int

const (
	EffectNone       StatsEffect = iota
	EffectFinished               // the command finished the match
	EffectUnfinished             // the command undid the winning point
)

func (e StatsEffect) String() string {
	switch e {
	case EffectFinished:
		return "finished"
	case EffectUnfinished:
		return "unfinished"
	default:
		return "none"
	}
}

// StatsRecorder receives the paired statistics hooks.
type StatsRecorder interface {
	OnMatchFinished(ir.MatchResult) error
	OnMatchUnfinished(ir.MatchResult) error
}

// Committer persists the outcome of a command. It receives the new match and
// the statistics effect and must write both atomically. A Commit error
// aborts the command: the caller's match and the statistics are left as they
// were before the command.
type Committer interface {
	Commit(ctx context.Context, m *Match, effect StatsEffect, result ir.MatchResult) error
}

// StartRequest holds the inputs of StartMatch. Identities and the rule set
// are already resolved by the caller.
type StartRequest struct {
	Player1     ir.PlayerID
	Player2     ir.PlayerID
	Rules       ir.RuleSet
	FirstServer ir.Slot // optional; SlotNone means "set later"
	GameModeID  int64
}

// Controller is the only component that mutates match event logs.
//
// Every command takes the lock of the match id for its whole duration,
// computes the new match on a copy, applies statistics, commits, and only
// then writes the copy back. A command either fully succeeds or fails with
// no observable mutation.
//
// Thread-safety: safe for concurrent use. Commands on different matches do
// not contend; commands on the same match are serialized.
type Controller struct {
	stats     StatsRecorder
	committer Committer
	clock     Clock
	ids       IDGenerator
	logger    *slog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	halted map[string]error
}

// Option configures a Controller.
type Option func(*Controller)

// WithCommitter sets the persistence hook.
func WithCommitter(c Committer) Option {
	return func(ctl *Controller) { ctl.committer = c }
}

// WithClock sets the clock used for start and end times.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithIDGenerator sets the match id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(ctl *Controller) { ctl.ids = g }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// NewController creates a controller that reports finished matches to stats.
func NewController(stats StatsRecorder, opts ...Option) *Controller {
	c := &Controller{
		stats:  stats,
		clock:  SystemClock{},
		ids:    UUIDGenerator{},
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
		halted: make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartMatch creates an in-progress match with an empty log.
func (c *Controller) StartMatch(ctx context.Context, req StartRequest) (*Match, error) {
	if err := req.Rules.Validate(); err != nil {
		return nil, err
	}
	if req.Player1 == "" || req.Player2 == "" {
		return nil, newError(CodeUnknownPlayer, "", "both players are required")
	}
	if req.Player1 == req.Player2 {
		return nil, newError(CodeSamePlayer, "", "player %s cannot play against themselves", req.Player1)
	}
	if req.FirstServer != ir.SlotNone && !req.FirstServer.Valid() {
		return nil, newError(CodeUnknownPlayer, "", "invalid first server %d", req.FirstServer)
	}

	m := &Match{
		ID:          c.ids.NewID(),
		Player1:     req.Player1,
		Player2:     req.Player2,
		GameModeID:  req.GameModeID,
		Rules:       req.Rules,
		Status:      ir.StatusInProgress,
		FirstServer: req.FirstServer,
		State:       ir.State{Server: req.FirstServer, Phase: ir.PhaseInProgress()},
		StartTime:   c.clock.Now(),
		Revision:    1,
	}

	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.commit(ctx, m, EffectNone, ir.MatchResult{}); err != nil {
		return nil, err
	}
	c.logger.Info("match started",
		"match", m.ID,
		"player1", m.Player1,
		"player2", m.Player2,
		"first_server", m.FirstServer.String(),
	)
	return m, nil
}

// SetFirstServer chooses who serves first. Allowed only while the log is
// empty and the match is in progress.
func (c *Controller) SetFirstServer(ctx context.Context, m *Match, server ir.Slot) error {
	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.haltedErr(m.ID); err != nil {
		return err
	}
	if !server.Valid() {
		return newError(CodeUnknownPlayer, m.ID, "invalid server %d", server)
	}
	if m.Status != ir.StatusInProgress || m.Log.Len() > 0 {
		return newError(CodeMatchAlreadyStarted, m.ID, "first server can only be set before the first point")
	}

	next := m.clone()
	next.FirstServer = server
	state, err := Derive(next.Rules, next.FirstServer, next.Log.Events())
	if err != nil {
		return c.fail(m.ID, err)
	}
	next.State = state
	next.Revision++

	if err := c.commit(ctx, next, EffectNone, ir.MatchResult{}); err != nil {
		return err
	}
	m.assign(next)
	c.logger.Info("first server set", "match", m.ID, "server", server.String())
	return nil
}

// AddPoint records a point for scorer and re-derives the state. When the
// point wins the match, the match is finished and the statistics hook runs.
func (c *Controller) AddPoint(ctx context.Context, m *Match, scorer ir.Slot) error {
	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.haltedErr(m.ID); err != nil {
		return err
	}
	switch m.Status {
	case ir.StatusCancelled:
		return newError(CodeMatchCancelled, m.ID, "cannot add a point to a cancelled match")
	case ir.StatusInProgress:
	default:
		return newError(CodeMatchNotInProgress, m.ID, "cannot add a point to a %s match", m.Status)
	}
	if !scorer.Valid() {
		return newError(CodeUnknownPlayer, m.ID, "invalid scorer %d", scorer)
	}
	if !m.FirstServer.Valid() {
		return newError(CodeServerNotSet, m.ID, "set the first server before adding points")
	}

	next := m.clone()
	if err := next.Log.Append(scorer); err != nil {
		return newError(CodeUnknownPlayer, m.ID, "%v", err)
	}
	state, err := Derive(next.Rules, next.FirstServer, next.Log.Events())
	if err != nil {
		return c.fail(m.ID, err)
	}
	next.State = state
	next.Revision++

	effect := EffectNone
	if winner, ok := state.Winner(); ok {
		now := c.clock.Now()
		next.Status = ir.StatusFinished
		next.WinnerID = next.PlayerAt(winner)
		next.EndTime = &now
		effect = EffectFinished
	}

	if err := c.commit(ctx, next, effect, next.Result()); err != nil {
		return err
	}
	m.assign(next)

	c.logger.Debug("point added",
		"match", m.ID,
		"scorer", scorer.String(),
		"score", m.State.Score.String(),
		"server", m.State.Server.String(),
		"phase", m.State.Phase.String(),
	)
	if effect == EffectFinished {
		c.logger.Info("match finished", "match", m.ID, "winner", m.WinnerID, "score", m.State.Score.String())
	}
	return nil
}

// UndoLastPoint removes the most recent point and re-derives the state. If
// that point had won the match, the statistics are reversed and the match
// returns to in progress.
func (c *Controller) UndoLastPoint(ctx context.Context, m *Match) error {
	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.haltedErr(m.ID); err != nil {
		return err
	}
	if m.Status == ir.StatusCancelled {
		return newError(CodeMatchCancelled, m.ID, "cannot undo in a cancelled match")
	}
	if m.Log.Len() == 0 {
		return newError(CodeNothingToUndo, m.ID, "the event log is empty")
	}

	wasFinished := m.Status == ir.StatusFinished
	previous := m.Result()

	next := m.clone()
	if _, err := next.Log.TruncateLast(); err != nil {
		if errors.Is(err, eventlog.ErrEmptyLog) {
			return wrapError(CodeNothingToUndo, m.ID, "the event log is empty", err)
		}
		return err
	}
	state, err := Derive(next.Rules, next.FirstServer, next.Log.Events())
	if err != nil {
		return c.fail(m.ID, err)
	}
	if state.Phase.IsFinished() {
		// Removing one event from a well-formed log always un-finishes it.
		return c.fail(m.ID, newError(CodeCorruptLog, m.ID, "log is still finished after undo"))
	}
	next.State = state
	next.Status = ir.StatusInProgress
	next.WinnerID = ""
	next.EndTime = nil
	next.Revision++

	effect := EffectNone
	if wasFinished {
		effect = EffectUnfinished
	}
	if err := c.commit(ctx, next, effect, previous); err != nil {
		return err
	}
	m.assign(next)

	c.logger.Debug("point undone", "match", m.ID, "score", m.State.Score.String())
	if wasFinished {
		c.logger.Info("match reopened", "match", m.ID, "previous_winner", previous.Winner)
	}
	return nil
}

// CancelMatch abandons an in-progress match. The log is frozen and
// statistics are not affected. Cancellation is irreversible.
func (c *Controller) CancelMatch(ctx context.Context, m *Match) error {
	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.haltedErr(m.ID); err != nil {
		return err
	}
	if m.Status != ir.StatusInProgress {
		return newError(CodeMatchNotInProgress, m.ID, "cannot cancel a %s match", m.Status)
	}

	next := m.clone()
	now := c.clock.Now()
	next.Status = ir.StatusCancelled
	next.EndTime = &now
	next.Revision++

	if err := c.commit(ctx, next, EffectNone, ir.MatchResult{}); err != nil {
		return err
	}
	m.assign(next)
	c.logger.Info("match cancelled", "match", m.ID, "score", m.State.Score.String())
	return nil
}

// Load re-derives a match read from persistence and refreshes its cached
// state. A log that cannot be folded, or whose fold disagrees with the
// stored status, halts the match.
func (c *Controller) Load(m *Match) error {
	unlock := c.lock(m.ID)
	defer unlock()

	if err := c.haltedErr(m.ID); err != nil {
		return err
	}
	state, err := Derive(m.Rules, m.FirstServer, m.Log.Events())
	if err != nil {
		return c.fail(m.ID, err)
	}

	winner, finished := state.Winner()
	switch m.Status {
	case ir.StatusFinished:
		if !finished {
			return c.fail(m.ID, newError(CodeCorruptLog, m.ID, "stored as finished but log is not"))
		}
		if m.WinnerID != m.PlayerAt(winner) {
			return c.fail(m.ID, newError(CodeCorruptLog, m.ID, "stored winner %s disagrees with log", m.WinnerID))
		}
	case ir.StatusInProgress, ir.StatusCancelled:
		if finished {
			return c.fail(m.ID, newError(CodeCorruptLog, m.ID, "stored as %s but log is finished", m.Status))
		}
	default:
		return c.fail(m.ID, newError(CodeCorruptLog, m.ID, "unknown status %q", m.Status))
	}

	m.State = state
	return nil
}

// Halted returns the error that halted a match, or nil.
func (c *Controller) Halted(matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted[matchID]
}

// commit applies the statistics effect and the persistence hook. On a
// persistence failure the statistics effect is reverted.
func (c *Controller) commit(ctx context.Context, next *Match, effect StatsEffect, result ir.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch effect {
	case EffectFinished:
		if err := c.stats.OnMatchFinished(result); err != nil {
			return c.fail(next.ID, wrapError(CodeStatisticsCorruption, next.ID, "finish hook failed", err))
		}
	case EffectUnfinished:
		if err := c.stats.OnMatchUnfinished(result); err != nil {
			return c.fail(next.ID, wrapError(CodeStatisticsCorruption, next.ID, "unfinish hook failed", err))
		}
	}

	if c.committer == nil {
		return nil
	}
	if err := c.committer.Commit(ctx, next, effect, result); err != nil {
		c.revertStats(next.ID, effect, result)
		return fmt.Errorf("commit match %s: %w", next.ID, err)
	}
	return nil
}

func (c *Controller) revertStats(matchID string, effect StatsEffect, result ir.MatchResult) {
	var err error
	switch effect {
	case EffectFinished:
		err = c.stats.OnMatchUnfinished(result)
	case EffectUnfinished:
		err = c.stats.OnMatchFinished(result)
	default:
		return
	}
	if err != nil {
		c.fail(matchID, wrapError(CodeStatisticsCorruption, matchID, "revert after failed commit", err))
	}
}

// fail records fatal errors as the halting cause of the match and returns err.
func (c *Controller) fail(matchID string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.MatchID == "" {
		cp := *e
		cp.MatchID = matchID
		err = &cp
	}
	if IsFatal(err) {
		c.mu.Lock()
		if _, ok := c.halted[matchID]; !ok {
			c.halted[matchID] = err
		}
		c.mu.Unlock()
		c.logger.Error("match halted", "match", matchID, "error", err)
	}
	return err
}

func (c *Controller) haltedErr(matchID string) error {
	return c.Halted(matchID)
}

// lock acquires the per-match mutex and returns its release function.
func (c *Controller) lock(matchID string) func() {
	c.mu.Lock()
	l, ok := c.locks[matchID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[matchID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
