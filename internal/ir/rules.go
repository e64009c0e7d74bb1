package ir

import (
	"errors"
	"fmt"
)

// ErrInvalidRuleSet is returned when a rule set fails construction-time
// validation. Match creation cannot proceed with such a rule set.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// ServeType selects how serve possession moves during a match.
type ServeType string

const (
	// ServeFree rotates the serve by the ServesBeforeChange / ServesInDeuce rule.
	ServeFree ServeType = "free"

	// ServeFixed keeps the first server serving for the whole match.
	ServeFixed ServeType = "fixed"
)

// ParseServeType parses a serve type name. Empty defaults to ServeFree.
func ParseServeType(s string) (ServeType, error) {
	switch ServeType(s) {
	case ServeFree, "":
		return ServeFree, nil
	case ServeFixed:
		return ServeFixed, nil
	default:
		return "", fmt.Errorf("%w: unknown serve type %q", ErrInvalidRuleSet, s)
	}
}

// RuleSet describes the win condition, serve rotation and deuce behavior of
// a game mode. It is a value type; a match keeps its own copy from the moment
// it starts.
type RuleSet struct {
	PointsToWin        int       `json:"points_to_win" yaml:"points_to_win"`
	ServesBeforeChange int       `json:"serves_before_change" yaml:"serves_before_change"`
	DeuceEnabled       bool      `json:"deuce_enabled" yaml:"deuce_enabled"`
	ServesInDeuce      int       `json:"serves_in_deuce" yaml:"serves_in_deuce"`
	ServeType          ServeType `json:"serve_type" yaml:"serve_type"`
}

// NewRuleSet builds and validates a rule set.
func NewRuleSet(pointsToWin, servesBeforeChange int, deuceEnabled bool, servesInDeuce int, serveType ServeType) (RuleSet, error) {
	rs := RuleSet{
		PointsToWin:        pointsToWin,
		ServesBeforeChange: servesBeforeChange,
		DeuceEnabled:       deuceEnabled,
		ServesInDeuce:      servesInDeuce,
		ServeType:          serveType,
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// Validate checks the construction-time invariants of the rule set.
func (rs RuleSet) Validate() error {
	if rs.PointsToWin < 1 {
		return fmt.Errorf("%w: points_to_win must be >= 1, got %d", ErrInvalidRuleSet, rs.PointsToWin)
	}
	if rs.ServesBeforeChange < 1 {
		return fmt.Errorf("%w: serves_before_change must be >= 1, got %d", ErrInvalidRuleSet, rs.ServesBeforeChange)
	}
	if rs.ServesInDeuce < 1 {
		return fmt.Errorf("%w: serves_in_deuce must be >= 1, got %d", ErrInvalidRuleSet, rs.ServesInDeuce)
	}
	switch rs.ServeType {
	case ServeFree, ServeFixed:
	default:
		return fmt.Errorf("%w: unknown serve type %q", ErrInvalidRuleSet, rs.ServeType)
	}
	return nil
}

// Standard returns the classic game to 11 with two serves each.
func Standard() RuleSet {
	return RuleSet{PointsToWin: 11, ServesBeforeChange: 2, DeuceEnabled: true, ServesInDeuce: 1, ServeType: ServeFree}
}

// GameMode is a named, reusable rule set.
type GameMode struct {
	ID          int64   `json:"id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Rules       RuleSet `json:"rules"`
}

// DefaultGameModes are seeded into an empty catalogue.
func DefaultGameModes() []GameMode {
	return []GameMode{
		{
			Slug:        "standard-11",
			Name:        "Standard 11",
			Description: "Classic game to 11 points (2 serves each)",
			Rules:       Standard(),
		},
		{
			Slug:        "classic-21",
			Name:        "Classic 21",
			Description: "Old school game to 21 points (5 serves each)",
			Rules:       RuleSet{PointsToWin: 21, ServesBeforeChange: 5, DeuceEnabled: true, ServesInDeuce: 1, ServeType: ServeFree},
		},
		{
			Slug:        "turbo-7",
			Name:        "Turbo 7",
			Description: "Fast game. Win at 7. Switch serve every point.",
			Rules:       RuleSet{PointsToWin: 7, ServesBeforeChange: 1, DeuceEnabled: false, ServesInDeuce: 1, ServeType: ServeFree},
		},
	}
}
