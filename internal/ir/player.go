package ir

import "time"

// PlayerID is an opaque player identifier (a UUID string).
type PlayerID string

// MatchStatus is the persisted lifecycle status of a match.
type MatchStatus string

const (
	StatusInProgress MatchStatus = "in_progress"
	StatusFinished   MatchStatus = "finished"
	StatusCancelled  MatchStatus = "cancelled"
)

// ParseMatchStatus parses a stored status value.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch MatchStatus(s) {
	case StatusInProgress, StatusFinished, StatusCancelled:
		return MatchStatus(s), true
	default:
		return "", false
	}
}

// PlayerStatistics is the per-player aggregate of finished matches.
type PlayerStatistics struct {
	MatchesPlayed int `json:"matches_played"`
	Wins          int `json:"wins"`
}

// Losses returns MatchesPlayed - Wins.
func (s PlayerStatistics) Losses() int {
	return s.MatchesPlayed - s.Wins
}

// Player is a registered player.
type Player struct {
	ID        PlayerID         `json:"id"`
	Name      string           `json:"name"`
	Nickname  string           `json:"nickname"`
	Color     string           `json:"color"`
	Icon      string           `json:"icon"`
	Stats     PlayerStatistics `json:"stats"`
	CreatedAt time.Time        `json:"created_at"`
}

// MatchResult names the participants and winner of a finished match; it is
// the input of the statistics hooks.
type MatchResult struct {
	MatchID string   `json:"match_id"`
	Player1 PlayerID `json:"player1"`
	Player2 PlayerID `json:"player2"`
	Winner  PlayerID `json:"winner"`
}
