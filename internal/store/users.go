package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/rally/internal/ir"
)

// DefaultColor is assigned to users created without a color.
const DefaultColor = "blue"

// UserInput holds the editable fields of a user.
type UserInput struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

func (in UserInput) normalize() (UserInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" {
		return in, fmt.Errorf("%w: user name is required", ErrInvalid)
	}
	if in.Color == "" {
		in.Color = DefaultColor
	}
	return in, nil
}

// CreateUser registers a new player with zeroed counters.
func (s *Store) CreateUser(ctx context.Context, in UserInput) (ir.Player, error) {
	in, err := in.normalize()
	if err != nil {
		return ir.Player{}, fmt.Errorf("create user: %w", err)
	}

	p := ir.Player{
		ID:        ir.PlayerID(uuid.NewString()),
		Name:      in.Name,
		Nickname:  in.Nickname,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: s.now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, nickname, color, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(p.ID), p.Name, p.Nickname, p.Color, p.Icon, formatTime(p.CreatedAt))
	if err != nil {
		return ir.Player{}, fmt.Errorf("create user: %w", err)
	}
	return p, nil
}

// UpdateUser replaces the editable fields of a user. Counters are untouched.
func (s *Store) UpdateUser(ctx context.Context, id ir.PlayerID, in UserInput) (ir.Player, error) {
	in, err := in.normalize()
	if err != nil {
		return ir.Player{}, fmt.Errorf("update user: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, nickname = ?, color = ?, icon = ?
		WHERE id = ?
	`, in.Name, in.Nickname, in.Color, in.Icon, string(id))
	if err != nil {
		return ir.Player{}, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ir.Player{}, fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ir.Player{}, fmt.Errorf("update user %s: %w", id, ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

// GetUser reads one user.
func (s *Store) GetUser(ctx context.Context, id ir.PlayerID) (ir.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, nickname, color, icon, matches_played, wins, created_at
		FROM users WHERE id = ?
	`, string(id))
	p, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Player{}, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Player{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return p, nil
}

// ListUsers returns all users ordered by name, then id.
func (s *Store) ListUsers(ctx context.Context) ([]ir.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, nickname, color, icon, matches_played, wins, created_at
		FROM users
		ORDER BY name ASC COLLATE BINARY, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []ir.Player
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// GetUserStatistics returns the counters of one user.
func (s *Store) GetUserStatistics(ctx context.Context, id ir.PlayerID) (ir.PlayerStatistics, error) {
	var st ir.PlayerStatistics
	err := s.db.QueryRowContext(ctx,
		`SELECT matches_played, wins FROM users WHERE id = ?`, string(id),
	).Scan(&st.MatchesPlayed, &st.Wins)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.PlayerStatistics{}, fmt.Errorf("get statistics %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.PlayerStatistics{}, fmt.Errorf("get statistics %s: %w", id, err)
	}
	return st, nil
}

// LoadStatistics returns the counters of every user, used to seed the
// in-memory aggregator at startup.
func (s *Store) LoadStatistics(ctx context.Context) (map[ir.PlayerID]ir.PlayerStatistics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, matches_played, wins FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	defer rows.Close()

	out := make(map[ir.PlayerID]ir.PlayerStatistics)
	for rows.Next() {
		var id string
		var st ir.PlayerStatistics
		if err := rows.Scan(&id, &st.MatchesPlayed, &st.Wins); err != nil {
			return nil, fmt.Errorf("load statistics: %w", err)
		}
		out[ir.PlayerID(id)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (ir.Player, error) {
	var (
		p         ir.Player
		id        string
		createdAt string
	)
	if err := row.Scan(&id, &p.Name, &p.Nickname, &p.Color, &p.Icon,
		&p.Stats.MatchesPlayed, &p.Stats.Wins, &createdAt); err != nil {
		return ir.Player{}, err
	}
	p.ID = ir.PlayerID(id)
	t, err := parseTime(createdAt)
	if err != nil {
		return ir.Player{}, err
	}
	p.CreatedAt = t
	return p, nil
}
