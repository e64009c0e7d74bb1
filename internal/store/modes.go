package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/roach88/rally/internal/ir"
)

// CreateGameMode inserts a new game mode. An empty slug is derived from the
// name. Returns ErrDuplicate if the slug is taken.
func (s *Store) CreateGameMode(ctx context.Context, gm ir.GameMode) (ir.GameMode, error) {
	gm, err := prepareGameMode(gm)
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("create game mode: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO game_modes
		(slug, name, description, points_to_win, serves_before_change, deuce_enabled, serves_in_deuce, serve_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, gameModeArgs(gm)...)
	if isUniqueViolation(err) {
		return ir.GameMode{}, fmt.Errorf("create game mode %q: %w", gm.Slug, ErrDuplicate)
	}
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("create game mode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("create game mode: %w", err)
	}
	gm.ID = id
	return gm, nil
}

// PutGameMode inserts gm or, if its slug exists, replaces the stored rules,
// name and description. Used by catalogue imports.
func (s *Store) PutGameMode(ctx context.Context, gm ir.GameMode) (ir.GameMode, error) {
	gm, err := prepareGameMode(gm)
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("put game mode: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_modes
		(slug, name, description, points_to_win, serves_before_change, deuce_enabled, serves_in_deuce, serve_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			points_to_win = excluded.points_to_win,
			serves_before_change = excluded.serves_before_change,
			deuce_enabled = excluded.deuce_enabled,
			serves_in_deuce = excluded.serves_in_deuce,
			serve_type = excluded.serve_type
	`, gameModeArgs(gm)...)
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("put game mode: %w", err)
	}
	return s.getGameModeBy(ctx, "slug", gm.Slug)
}

// EnsureDefaultGameModes seeds the built-in game modes. Existing rows with the
// same slug are left untouched.
func (s *Store) EnsureDefaultGameModes(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure default game modes: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, gm := range ir.DefaultGameModes() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_modes
			(slug, name, description, points_to_win, serves_before_change, deuce_enabled, serves_in_deuce, serve_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(slug) DO NOTHING
		`, gameModeArgs(gm)...)
		if err != nil {
			return fmt.Errorf("ensure default game mode %q: %w", gm.Slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure default game modes: commit: %w", err)
	}
	return nil
}

// ListGameModes returns all game modes in creation order.
func (s *Store) ListGameModes(ctx context.Context) ([]ir.GameMode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, description, points_to_win, serves_before_change, deuce_enabled, serves_in_deuce, serve_type
		FROM game_modes
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list game modes: %w", err)
	}
	defer rows.Close()

	var out []ir.GameMode
	for rows.Next() {
		gm, err := scanGameMode(rows)
		if err != nil {
			return nil, fmt.Errorf("list game modes: %w", err)
		}
		out = append(out, gm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list game modes: %w", err)
	}
	return out, nil
}

// GetGameMode looks a game mode up by numeric id or by slug.
func (s *Store) GetGameMode(ctx context.Context, ref string) (ir.GameMode, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.getGameModeBy(ctx, "id", id)
	}
	return s.getGameModeBy(ctx, "slug", ref)
}

func (s *Store) getGameModeBy(ctx context.Context, column string, value any) (ir.GameMode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, points_to_win, serves_before_change, deuce_enabled, serves_in_deuce, serve_type
		FROM game_modes WHERE `+column+` = ?
	`, value)
	gm, err := scanGameMode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.GameMode{}, fmt.Errorf("get game mode %v: %w", value, ErrNotFound)
	}
	if err != nil {
		return ir.GameMode{}, fmt.Errorf("get game mode %v: %w", value, err)
	}
	return gm, nil
}

func prepareGameMode(gm ir.GameMode) (ir.GameMode, error) {
	gm.Name = strings.TrimSpace(gm.Name)
	if gm.Name == "" {
		return gm, fmt.Errorf("%w: game mode name is required", ErrInvalid)
	}
	if gm.Slug == "" {
		gm.Slug = slug.Make(gm.Name)
	}
	if !slug.IsSlug(gm.Slug) {
		return gm, fmt.Errorf("%w: %q is not a valid slug", ErrInvalid, gm.Slug)
	}
	if gm.Rules.ServeType == "" {
		gm.Rules.ServeType = ir.ServeFree
	}
	if err := gm.Rules.Validate(); err != nil {
		return gm, err
	}
	return gm, nil
}

func gameModeArgs(gm ir.GameMode) []any {
	return []any{
		gm.Slug,
		gm.Name,
		gm.Description,
		gm.Rules.PointsToWin,
		gm.Rules.ServesBeforeChange,
		gm.Rules.DeuceEnabled,
		gm.Rules.ServesInDeuce,
		string(gm.Rules.ServeType),
	}
}

func scanGameMode(row scanner) (ir.GameMode, error) {
	var (
		gm        ir.GameMode
		serveType string
	)
	if err := row.Scan(&gm.ID, &gm.Slug, &gm.Name, &gm.Description,
		&gm.Rules.PointsToWin, &gm.Rules.ServesBeforeChange, &gm.Rules.DeuceEnabled,
		&gm.Rules.ServesInDeuce, &serveType); err != nil {
		return ir.GameMode{}, err
	}
	st, err := ir.ParseServeType(serveType)
	if err != nil {
		return ir.GameMode{}, err
	}
	gm.Rules.ServeType = st
	return gm, nil
}
