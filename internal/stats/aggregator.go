// Package stats maintains per-player win and played counters.
//
// Counters are process-wide shared state. They are only ever changed through
// the paired hooks OnMatchFinished and OnMatchUnfinished so that, for any
// match, a finish followed by an unfinish has zero net effect.
package stats

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/rally/internal/ir"
)

// ErrCorruption indicates counters would become negative. It means a hook was
// called out of order and is never a user-facing condition.
var ErrCorruption = errors.New("statistics corruption")

// Aggregator holds PlayerStatistics for every player seen.
//
// Thread-safety: all methods are safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	counters map[ir.PlayerID]ir.PlayerStatistics
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counters: make(map[ir.PlayerID]ir.PlayerStatistics)}
}

// Seed replaces the counters with persisted values, typically loaded from
// the store at startup.
func (a *Aggregator) Seed(counters map[ir.PlayerID]ir.PlayerStatistics) error {
	if err := checkCounters(counters); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters = maps.Clone(counters)
	if a.counters == nil {
		a.counters = make(map[ir.PlayerID]ir.PlayerStatistics)
	}
	return nil
}

// Sync overwrites the counters of the given players with persisted values.
// Other players are left untouched. Call it before a command when another
// process may have written the same database.
func (a *Aggregator) Sync(counters map[ir.PlayerID]ir.PlayerStatistics) error {
	if err := checkCounters(counters); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	maps.Copy(a.counters, counters)
	return nil
}

// OnMatchFinished counts a completed match: +1 played for both players and
// +1 win for the winner. Called exactly once per completion.
func (a *Aggregator) OnMatchFinished(r ir.MatchResult) error {
	if err := checkResult(r); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	p1 := a.counters[r.Player1]
	p2 := a.counters[r.Player2]
	p1.MatchesPlayed++
	p2.MatchesPlayed++
	if r.Winner == r.Player1 {
		p1.Wins++
	} else {
		p2.Wins++
	}
	a.counters[r.Player1] = p1
	a.counters[r.Player2] = p2
	return nil
}

// OnMatchUnfinished is the exact inverse of OnMatchFinished. If any counter
// would go negative nothing is changed and ErrCorruption is returned.
func (a *Aggregator) OnMatchUnfinished(r ir.MatchResult) error {
	if err := checkResult(r); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	p1 := a.counters[r.Player1]
	p2 := a.counters[r.Player2]
	p1.MatchesPlayed--
	p2.MatchesPlayed--
	if r.Winner == r.Player1 {
		p1.Wins--
	} else {
		p2.Wins--
	}
	if p1.MatchesPlayed < 0 || p1.Wins < 0 || p2.MatchesPlayed < 0 || p2.Wins < 0 {
		return fmt.Errorf("%w: reversing match %s would leave negative counters", ErrCorruption, r.MatchID)
	}
	a.counters[r.Player1] = p1
	a.counters[r.Player2] = p2
	return nil
}

// Get returns the counters of one player. Unknown players have zero counters.
func (a *Aggregator) Get(id ir.PlayerID) ir.PlayerStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[id]
}

// Snapshot returns a copy of all counters.
func (a *Aggregator) Snapshot() map[ir.PlayerID]ir.PlayerStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.counters)
}

func checkResult(r ir.MatchResult) error {
	if r.Player1 == "" || r.Player2 == "" || r.Player1 == r.Player2 {
		return fmt.Errorf("%w: match %s has invalid participants", ErrCorruption, r.MatchID)
	}
	if r.Winner != r.Player1 && r.Winner != r.Player2 {
		return fmt.Errorf("%w: match %s winner %q is not a participant", ErrCorruption, r.MatchID, r.Winner)
	}
	return nil
}

func checkCounters(counters map[ir.PlayerID]ir.PlayerStatistics) error {
	for id, c := range counters {
		if c.MatchesPlayed < 0 || c.Wins < 0 || c.Wins > c.MatchesPlayed {
			return fmt.Errorf("%w: player %s has played=%d wins=%d", ErrCorruption, id, c.MatchesPlayed, c.Wins)
		}
	}
	return nil
}
