package engine

import (
	"github.com/roach88/rally/internal/ir"
)

// Fold is the incremental form of Derive: it applies scoring events one at a
// time to a running state. Derive(rules, first, events) is exactly the state
// of a Fold after applying every event in order.
type Fold struct {
	rules         ir.RuleSet
	state         ir.State
	sinceRotation int
	applied       int
}

// NewFold starts a fold at 0-0 with firstServer serving.
func NewFold(rules ir.RuleSet, firstServer ir.Slot) *Fold {
	return &Fold{
		rules: rules,
		state: ir.State{Server: firstServer, Phase: ir.PhaseInProgress()},
	}
}

// State returns the state after the events applied so far.
func (f *Fold) State() ir.State {
	return f.state
}

// Applied returns the number of events applied so far.
func (f *Fold) Applied() int {
	return f.applied
}

// Apply folds one scoring event into the state.
//
// An event after the match is finished, or an event that names no player,
// is CORRUPT_LOG: a well-formed log never contains one because the
// controller stops accepting points once a match is finished.
func (f *Fold) Apply(scorer ir.Slot) error {
	if f.state.Phase.IsFinished() {
		return newError(CodeCorruptLog, "", "event %d follows the winning point", f.applied)
	}
	if !scorer.Valid() {
		return newError(CodeCorruptLog, "", "event %d has invalid scorer %d", f.applied, scorer)
	}
	if !f.state.Server.Valid() {
		return newError(CodeServerNotSet, "", "event %d recorded without a first server", f.applied)
	}

	f.state.Score = f.state.Score.Add(scorer)
	deuce := inDeuce(f.rules, f.state.Score)

	if f.rules.ServeType != ir.ServeFixed {
		f.sinceRotation++
		threshold := f.rules.ServesBeforeChange
		if deuce {
			threshold = f.rules.ServesInDeuce
		}
		if f.sinceRotation >= threshold {
			f.state.Server = f.state.Server.Other()
			f.sinceRotation = 0
		}
	}

	switch winner, ok := checkWinner(f.rules, f.state.Score); {
	case ok:
		f.state.Phase = ir.PhaseFinished(winner)
	case deuce:
		f.state.Phase = ir.PhaseDeuce()
	default:
		f.state.Phase = ir.PhaseInProgress()
	}

	f.applied++
	return nil
}

// Derive maps a rule set, first server and event sequence to the derived
// match state. It is a pure function: the same inputs always give the same
// state, and it can be re-run from scratch over any prefix of a log.
func Derive(rules ir.RuleSet, firstServer ir.Slot, events []ir.Slot) (ir.State, error) {
	f := NewFold(rules, firstServer)
	for _, e := range events {
		if err := f.Apply(e); err != nil {
			return ir.State{}, err
		}
	}
	return f.State(), nil
}

// DeriveSteps returns the state after each event; steps[i] is the state
// after events[0..i].
func DeriveSteps(rules ir.RuleSet, firstServer ir.Slot, events []ir.Slot) ([]ir.State, error) {
	f := NewFold(rules, firstServer)
	steps := make([]ir.State, 0, len(events))
	for _, e := range events {
		if err := f.Apply(e); err != nil {
			return nil, err
		}
		steps = append(steps, f.State())
	}
	return steps, nil
}

// inDeuce reports whether deuce serve rotation applies: both players are
// within one point of the win threshold.
func inDeuce(rules ir.RuleSet, s ir.Score) bool {
	return rules.DeuceEnabled && min(s.P1, s.P2) >= rules.PointsToWin-1
}

// checkWinner applies the win rule. With deuce enabled a player needs
// PointsToWin and a lead of two; without deuce reaching PointsToWin is enough.
func checkWinner(rules ir.RuleSet, s ir.Score) (ir.Slot, bool) {
	for _, slot := range []ir.Slot{ir.P1, ir.P2} {
		own, opp := s.Of(slot), s.Of(slot.Other())
		if own < rules.PointsToWin {
			continue
		}
		if !rules.DeuceEnabled || own-opp >= 2 {
			return slot, true
		}
	}
	return ir.SlotNone, false
}
