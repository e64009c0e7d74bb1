package engine

import (
	"time"

	"github.com/roach88/rally/internal/eventlog"
	"github.com/roach88/rally/internal/ir"
)

// Match is one head-to-head match.
//
// Log is the source of truth. State, Status, WinnerID and EndTime are a cache
// of the fold over Log and are only written by the Controller.
type Match struct {
	ID          string         `json:"id"`
	Player1     ir.PlayerID    `json:"player1"`
	Player2     ir.PlayerID    `json:"player2"`
	GameModeID  int64          `json:"game_mode_id,omitempty"`
	Rules       ir.RuleSet     `json:"rules"`
	Status      ir.MatchStatus `json:"status"`
	FirstServer ir.Slot        `json:"first_server,omitempty"`
	Log         eventlog.Log   `json:"events"`
	State       ir.State       `json:"state"`
	WinnerID    ir.PlayerID    `json:"winner_id,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     *time.Time     `json:"end_time,omitempty"`

	// Revision counts committed commands. Persistence uses it to reject
	// writes based on a stale copy of the match.
	Revision int64 `json:"revision"`
}

// PlayerAt returns the player occupying slot.
func (m *Match) PlayerAt(slot ir.Slot) ir.PlayerID {
	switch slot {
	case ir.P1:
		return m.Player1
	case ir.P2:
		return m.Player2
	default:
		return ""
	}
}

// SlotOf returns the slot occupied by player.
func (m *Match) SlotOf(player ir.PlayerID) (ir.Slot, bool) {
	switch {
	case player == "":
		return ir.SlotNone, false
	case player == m.Player1:
		return ir.P1, true
	case player == m.Player2:
		return ir.P2, true
	default:
		return ir.SlotNone, false
	}
}

// Result describes the finished match for the statistics hooks. WinnerID is
// empty unless the match is finished.
func (m *Match) Result() ir.MatchResult {
	return ir.MatchResult{
		MatchID: m.ID,
		Player1: m.Player1,
		Player2: m.Player2,
		Winner:  m.WinnerID,
	}
}

// Involves reports whether player takes part in the match.
func (m *Match) Involves(player ir.PlayerID) bool {
	_, ok := m.SlotOf(player)
	return ok
}

// assign copies next into m. ID never changes after StartMatch, so callers
// may read it without holding the match lock.
func (m *Match) assign(next *Match) {
	m.Player1 = next.Player1
	m.Player2 = next.Player2
	m.GameModeID = next.GameModeID
	m.Rules = next.Rules
	m.Status = next.Status
	m.FirstServer = next.FirstServer
	m.Log = next.Log
	m.State = next.State
	m.WinnerID = next.WinnerID
	m.StartTime = next.StartTime
	m.EndTime = next.EndTime
	m.Revision = next.Revision
}

func (m *Match) clone() *Match {
	c := *m
	c.Log = m.Log.Clone()
	if m.EndTime != nil {
		end := *m.EndTime
		c.EndTime = &end
	}
	return &c
}
