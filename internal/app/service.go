// Package app wires the store, the statistics aggregator and the match
// controller into the command set shared by the CLI and the local API.
//
// Every match command holds the match's lock while it loads the match from
// the store, re-derives it through engine.Controller.Load, reloads both
// players' counters, runs the command, and lets the controller commit
// through the store. The store is the only cross-process state: the CLI and
// a running API server may share one database, and the counters in users
// are authoritative.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rally/internal/compiler"
	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/stats"
	"github.com/roach88/rally/internal/store"
)

// DefaultGameMode is used when a match is started without a mode.
const DefaultGameMode = "standard-11"

// Options configures a Service. Zero values select production defaults.
type Options struct {
	Clock  engine.Clock
	IDs    engine.IDGenerator
	Logger *slog.Logger
}

// Service executes user commands against a store.
//
// Thread-safety: safe for concurrent use.
type Service struct {
	store  *store.Store
	stats  *stats.Aggregator
	ctl    *engine.Controller
	locks  *keyedMutex
	logger *slog.Logger
}

// New seeds the built-in game modes and the statistics aggregator from st
// and returns a ready Service.
func New(ctx context.Context, st *store.Store, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := st.EnsureDefaultGameModes(ctx); err != nil {
		return nil, fmt.Errorf("seed game modes: %w", err)
	}

	agg := stats.NewAggregator()
	counters, err := st.LoadStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed statistics: %w", err)
	}
	if err := agg.Seed(counters); err != nil {
		return nil, fmt.Errorf("seed statistics: %w", err)
	}

	ctlOpts := []engine.Option{engine.WithCommitter(st), engine.WithLogger(logger)}
	if opts.Clock != nil {
		ctlOpts = append(ctlOpts, engine.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		ctlOpts = append(ctlOpts, engine.WithIDGenerator(opts.IDs))
	}

	return &Service{
		store:  st,
		stats:  agg,
		ctl:    engine.NewController(agg, ctlOpts...),
		locks:  newKeyedMutex(),
		logger: logger,
	}, nil
}

// CreateUser registers a player.
func (s *Service) CreateUser(ctx context.Context, in store.UserInput) (ir.Player, error) {
	p, err := s.store.CreateUser(ctx, in)
	if err != nil {
		return ir.Player{}, err
	}
	s.logger.Info("user created", "user", p.ID, "name", p.Name)
	return p, nil
}

// UpdateUser edits a player's profile.
func (s *Service) UpdateUser(ctx context.Context, id ir.PlayerID, in store.UserInput) (ir.Player, error) {
	return s.store.UpdateUser(ctx, id, in)
}

// GetUser returns one player with its stored counters.
func (s *Service) GetUser(ctx context.Context, id ir.PlayerID) (ir.Player, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers returns every player.
func (s *Service) ListUsers(ctx context.Context) ([]ir.Player, error) {
	return s.store.ListUsers(ctx)
}

// UserStatistics returns the stored counters of a player, including
// matches finished by other processes on the same database.
func (s *Service) UserStatistics(ctx context.Context, id ir.PlayerID) (ir.PlayerStatistics, error) {
	return s.store.GetUserStatistics(ctx, id)
}

// ListGameModes returns the catalogue.
func (s *Service) ListGameModes(ctx context.Context) ([]ir.GameMode, error) {
	return s.store.ListGameModes(ctx)
}

// CreateGameMode adds a game mode to the catalogue.
func (s *Service) CreateGameMode(ctx context.Context, gm ir.GameMode) (ir.GameMode, error) {
	gm, err := s.store.CreateGameMode(ctx, gm)
	if err != nil {
		return ir.GameMode{}, err
	}
	s.logger.Info("game mode created", "mode", gm.Slug)
	return gm, nil
}

// ImportGameModes loads a CUE catalogue and upserts every mode by slug.
func (s *Service) ImportGameModes(ctx context.Context, path string) ([]ir.GameMode, error) {
	modes, err := compiler.LoadFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]ir.GameMode, 0, len(modes))
	for _, gm := range modes {
		saved, err := s.store.PutGameMode(ctx, gm)
		if err != nil {
			return nil, fmt.Errorf("import %q: %w", gm.Name, err)
		}
		out = append(out, saved)
	}
	s.logger.Info("game modes imported", "file", path, "count", len(out))
	return out, nil
}

// StartInput names the players, the game mode (id or slug) and optionally
// the first server of a new match.
type StartInput struct {
	Player1     ir.PlayerID `json:"player1"`
	Player2     ir.PlayerID `json:"player2"`
	Mode        string      `json:"mode"`
	FirstServer string      `json:"first_server"`
}

// StartMatch starts a match between two registered players.
func (s *Service) StartMatch(ctx context.Context, in StartInput) (*engine.Match, error) {
	for _, id := range []ir.PlayerID{in.Player1, in.Player2} {
		if id == "" {
			continue
		}
		if _, err := s.store.GetUser(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("player %s: %w", id, engine.ErrUnknownPlayer)
			}
			return nil, err
		}
	}

	mode := in.Mode
	if mode == "" {
		mode = DefaultGameMode
	}
	gm, err := s.store.GetGameMode(ctx, mode)
	if err != nil {
		return nil, err
	}

	first := ir.SlotNone
	if in.FirstServer != "" {
		first, err = resolveSlot(in.FirstServer, in.Player1, in.Player2)
		if err != nil {
			return nil, err
		}
	}

	return s.ctl.StartMatch(ctx, engine.StartRequest{
		Player1:     in.Player1,
		Player2:     in.Player2,
		Rules:       gm.Rules,
		FirstServer: first,
		GameModeID:  gm.ID,
	})
}

// GetMatch loads and re-derives a match.
func (s *Service) GetMatch(ctx context.Context, id string) (*engine.Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ctl.Load(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListUserMatches returns a player's matches, newest first, each
// re-derived from its log.
func (s *Service) ListUserMatches(ctx context.Context, id ir.PlayerID) ([]*engine.Match, error) {
	if _, err := s.store.GetUser(ctx, id); err != nil {
		return nil, err
	}
	matches, err := s.store.ListUserMatches(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if err := s.ctl.Load(m); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// SetFirstServer chooses who serves first. server is a slot ("p1", "p2")
// or the id of a participating player.
func (s *Service) SetFirstServer(ctx context.Context, id, server string) (*engine.Match, error) {
	return s.mutate(ctx, id, func(m *engine.Match) error {
		slot, err := resolveSlot(server, m.Player1, m.Player2)
		if err != nil {
			return err
		}
		return s.ctl.SetFirstServer(ctx, m, slot)
	})
}

// AddPoint records a point. scorer is a slot or the id of a participating
// player.
func (s *Service) AddPoint(ctx context.Context, id, scorer string) (*engine.Match, error) {
	return s.mutate(ctx, id, func(m *engine.Match) error {
		slot, err := resolveSlot(scorer, m.Player1, m.Player2)
		if err != nil {
			return err
		}
		return s.ctl.AddPoint(ctx, m, slot)
	})
}

// UndoLastPoint removes the most recent point.
func (s *Service) UndoLastPoint(ctx context.Context, id string) (*engine.Match, error) {
	return s.mutate(ctx, id, func(m *engine.Match) error {
		return s.ctl.UndoLastPoint(ctx, m)
	})
}

// CancelMatch abandons a match.
func (s *Service) CancelMatch(ctx context.Context, id string) (*engine.Match, error) {
	return s.mutate(ctx, id, func(m *engine.Match) error {
		return s.ctl.CancelMatch(ctx, m)
	})
}

// Replay verifies stored matches: every log is derived twice and
// incrementally, and the cached columns are compared with the fold. An empty
// matchID verifies all matches.
func (s *Service) Replay(ctx context.Context, matchID string) ([]engine.ReplayReport, error) {
	ids := []string{matchID}
	if matchID == "" {
		var err error
		if ids, err = s.store.ListMatchIDs(ctx); err != nil {
			return nil, err
		}
	}

	reports := make([]engine.ReplayReport, 0, len(ids))
	for _, id := range ids {
		m, err := s.store.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		report, err := engine.VerifyMatch(m)
		if err != nil {
			s.logger.Warn("replay failed", "match", id, "error", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// mutate runs one match command under the match lock. A commit that lost a
// race with another process (store.ErrStale) is retried once on a fresh
// load.
func (s *Service) mutate(ctx context.Context, id string, fn func(*engine.Match) error) (*engine.Match, error) {
	unlock := s.locks.lock("match:" + id)
	defer unlock()

	m, err := s.mutateOnce(ctx, id, fn)
	if errors.Is(err, store.ErrStale) {
		s.logger.Warn("match changed concurrently, retrying", "match", id)
		m, err = s.mutateOnce(ctx, id, fn)
	}
	return m, err
}

func (s *Service) mutateOnce(ctx context.Context, id string, fn func(*engine.Match) error) (*engine.Match, error) {
	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	// Player locks keep two matches of the same player from interleaving
	// their statistics sync and commit.
	unlock := s.locks.lock("player:"+string(m.Player1), "player:"+string(m.Player2))
	defer unlock()
	if err := s.syncStatistics(ctx, m); err != nil {
		return nil, err
	}

	if err := fn(m); err != nil {
		return nil, err
	}
	return m, nil
}

// syncStatistics reloads both players' counters into the aggregator.
func (s *Service) syncStatistics(ctx context.Context, m *engine.Match) error {
	counters := make(map[ir.PlayerID]ir.PlayerStatistics, 2)
	for _, id := range []ir.PlayerID{m.Player1, m.Player2} {
		st, err := s.store.GetUserStatistics(ctx, id)
		if err != nil {
			return fmt.Errorf("sync statistics of %s: %w", id, err)
		}
		counters[id] = st
	}
	return s.stats.Sync(counters)
}

// resolveSlot accepts "p1", "p2", "1", "2" or a participant's player id.
func resolveSlot(ref string, p1, p2 ir.PlayerID) (ir.Slot, error) {
	if slot, err := ir.ParseSlot(ref); err == nil && slot.Valid() {
		return slot, nil
	}
	switch ir.PlayerID(ref) {
	case "":
	case p1:
		return ir.P1, nil
	case p2:
		return ir.P2, nil
	}
	return ir.SlotNone, fmt.Errorf("%q: %w", ref, engine.ErrUnknownPlayer)
}
