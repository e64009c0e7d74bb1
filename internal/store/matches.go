package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
)

// Commit persists the outcome of one controller command. The match row and
// the statistics delta on users are written in a single transaction, so a
// failure leaves neither behind.
//
// A match with Revision 1 is inserted. Later revisions update the row only
// if the stored revision is exactly one behind; otherwise ErrStale is
// returned.
//
// Commit implements engine.Committer.
func (s *Store) Commit(ctx context.Context, m *engine.Match, effect engine.StatsEffect, result ir.MatchResult) error {
	rules, err := marshalRules(m.Rules)
	if err != nil {
		return fmt.Errorf("commit match %s: %w", m.ID, err)
	}
	events, err := marshalEvents(m.Log)
	if err != nil {
		return fmt.Errorf("commit match %s: %w", m.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit match %s: begin tx: %w", m.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	args := []any{
		string(m.Player1),
		string(m.Player2),
		nullInt64(m.GameModeID),
		rules,
		string(m.Status),
		m.FirstServer.String(),
		events,
		m.State.Score.P1,
		m.State.Score.P2,
		m.State.Server.String(),
		m.State.Phase.Kind().String(),
		nullString(string(m.WinnerID)),
		formatTime(m.StartTime),
		formatNullTime(m.EndTime),
		m.Revision,
	}

	if m.Revision <= 1 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO matches
			(player1_id, player2_id, game_mode_id, rules, status, first_server, events,
			 score1, score2, server, phase, winner_id, start_time, end_time, revision, id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, append(args, m.ID)...)
		if isUniqueViolation(err) {
			return fmt.Errorf("commit match %s: %w", m.ID, ErrDuplicate)
		}
		if isConstraintViolation(err) {
			return fmt.Errorf("commit match %s: %w: %v", m.ID, ErrInvalid, err)
		}
		if err != nil {
			return fmt.Errorf("commit match %s: %w", m.ID, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE matches SET
				player1_id = ?, player2_id = ?, game_mode_id = ?, rules = ?, status = ?,
				first_server = ?, events = ?, score1 = ?, score2 = ?, server = ?, phase = ?,
				winner_id = ?, start_time = ?, end_time = ?, revision = ?
			WHERE id = ? AND revision = ?
		`, append(args, m.ID, m.Revision-1)...)
		if err != nil {
			return fmt.Errorf("commit match %s: %w", m.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("commit match %s: %w", m.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("commit match %s at revision %d: %w", m.ID, m.Revision, ErrStale)
		}
	}

	if err := applyStatsEffect(ctx, tx, effect, result); err != nil {
		return fmt.Errorf("commit match %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match %s: commit: %w", m.ID, err)
	}
	return nil
}

// applyStatsEffect mirrors stats.Aggregator on the users table. These
// counters are the authoritative ones: the CHECK constraints reject any
// delta that would make a counter negative, reported as
// engine.ErrStatisticsCorruption.
func applyStatsEffect(ctx context.Context, tx *sql.Tx, effect engine.StatsEffect, r ir.MatchResult) error {
	var delta int
	switch effect {
	case engine.EffectFinished:
		delta = 1
	case engine.EffectUnfinished:
		delta = -1
	default:
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET
			matches_played = matches_played + ?,
			wins = wins + CASE WHEN id = ? THEN ? ELSE 0 END
		WHERE id IN (?, ?)
	`, delta, string(r.Winner), delta, string(r.Player1), string(r.Player2))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("apply %s statistics: %w: %v", effect, engine.ErrStatisticsCorruption, err)
		}
		return fmt.Errorf("apply %s statistics: %w", effect, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply %s statistics: %w", effect, err)
	}
	if n != 2 {
		return fmt.Errorf("apply %s statistics: %w: expected 2 players, updated %d", effect, ErrNotFound, n)
	}
	return nil
}

const matchColumns = `id, player1_id, player2_id, game_mode_id, rules, status, first_server, events,
	score1, score2, server, phase, winner_id, start_time, end_time, revision`

// GetMatch reads one match. The cached state columns are returned as stored;
// callers re-derive through engine.Controller.Load before trusting them.
func (s *Store) GetMatch(ctx context.Context, id string) (*engine.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return m, nil
}

// ListUserMatches returns the matches a user took part in, newest first.
// Like GetMatch, the cached state columns are returned as stored.
func (s *Store) ListUserMatches(ctx context.Context, userID ir.PlayerID) ([]*engine.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE player1_id = ? OR player2_id = ?
		ORDER BY start_time DESC, id DESC
	`, string(userID), string(userID))
	if err != nil {
		return nil, fmt.Errorf("list matches of %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*engine.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list matches of %s: %w", userID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches of %s: %w", userID, err)
	}
	return out, nil
}

// ListMatchIDs returns every match id, oldest first.
func (s *Store) ListMatchIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM matches ORDER BY start_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list match ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list match ids: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list match ids: %w", err)
	}
	return ids, nil
}

func scanMatch(row scanner) (*engine.Match, error) {
	var (
		m                   engine.Match
		p1, p2, status      string
		gameModeID          sql.NullInt64
		rules, events       string
		firstServer, server string
		phase               string
		winnerID            sql.NullString
		startTime           string
		endTime             sql.NullString
	)
	if err := row.Scan(&m.ID, &p1, &p2, &gameModeID, &rules, &status, &firstServer, &events,
		&m.State.Score.P1, &m.State.Score.P2, &server, &phase, &winnerID,
		&startTime, &endTime, &m.Revision); err != nil {
		return nil, err
	}

	m.Player1 = ir.PlayerID(p1)
	m.Player2 = ir.PlayerID(p2)
	m.GameModeID = gameModeID.Int64
	m.WinnerID = ir.PlayerID(winnerID.String)

	var err error
	var ok bool
	if m.Status, ok = ir.ParseMatchStatus(status); !ok {
		return nil, fmt.Errorf("match %s: unknown status %q", m.ID, status)
	}
	if m.Rules, err = unmarshalRules(rules); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.Log, err = unmarshalEvents(events); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.FirstServer, err = ir.ParseSlot(firstServer); err != nil {
		return nil, fmt.Errorf("match %s: first server: %w", m.ID, err)
	}
	if m.State.Server, err = ir.ParseSlot(server); err != nil {
		return nil, fmt.Errorf("match %s: server: %w", m.ID, err)
	}
	winnerSlot, _ := m.SlotOf(m.WinnerID)
	if m.State.Phase, err = parsePhase(phase, winnerSlot); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.EndTime, err = parseNullTime(endTime); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	return &m, nil
}
