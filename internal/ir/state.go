package ir

import (
	"encoding/json"
	"fmt"
)

// Score is the point tally of both players.
type Score struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// Of returns the score of the given slot.
func (s Score) Of(slot Slot) int {
	if slot == P2 {
		return s.P2
	}
	return s.P1
}

// Add returns the score with one point added for slot.
func (s Score) Add(slot Slot) Score {
	switch slot {
	case P1:
		s.P1++
	case P2:
		s.P2++
	}
	return s
}

func (s Score) String() string {
	return fmt.Sprintf("%d-%d", s.P1, s.P2)
}

// PhaseKind enumerates the phases a match can be in.
type PhaseKind uint8

const (
	KindInProgress PhaseKind = iota
	KindDeuce
	KindFinished
)

func (k PhaseKind) String() string {
	switch k {
	case KindDeuce:
		return "deuce"
	case KindFinished:
		return "finished"
	default:
		return "in_progress"
	}
}

// Phase is the derived phase of a match: InProgress, Deuce or
// Finished{winner}. The fields are unexported so that a finished phase
// without a winner cannot be constructed outside this package.
type Phase struct {
	kind   PhaseKind
	winner Slot
}

// PhaseInProgress is normal play.
func PhaseInProgress() Phase { return Phase{kind: KindInProgress} }

// PhaseDeuce is play near the win threshold.
func PhaseDeuce() Phase { return Phase{kind: KindDeuce} }

// PhaseFinished is a completed match won by winner.
func PhaseFinished(winner Slot) Phase {
	if !winner.Valid() {
		panic(fmt.Sprintf("ir: finished phase requires a winner, got %d", winner))
	}
	return Phase{kind: KindFinished, winner: winner}
}

// Kind returns the variant tag.
func (p Phase) Kind() PhaseKind { return p.kind }

// IsFinished reports whether the phase is Finished.
func (p Phase) IsFinished() bool { return p.kind == KindFinished }

// IsDeuce reports whether the phase is Deuce.
func (p Phase) IsDeuce() bool { return p.kind == KindDeuce }

// Winner returns the winner of a finished phase.
func (p Phase) Winner() (Slot, bool) {
	if p.kind != KindFinished {
		return SlotNone, false
	}
	return p.winner, true
}

func (p Phase) String() string {
	if p.kind == KindFinished {
		return fmt.Sprintf("finished(%s)", p.winner)
	}
	return p.kind.String()
}

type phaseJSON struct {
	Kind   string `json:"kind"`
	Winner Slot   `json:"winner,omitempty"`
}

// MarshalJSON encodes the phase as {"kind": ..., "winner": ...}.
func (p Phase) MarshalJSON() ([]byte, error) {
	out := phaseJSON{Kind: p.kind.String()}
	if p.kind == KindFinished {
		out.Winner = p.winner
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a phase, rejecting a finished phase with no winner.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var in phaseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "in_progress", "":
		*p = PhaseInProgress()
	case "deuce":
		*p = PhaseDeuce()
	case "finished":
		if !in.Winner.Valid() {
			return fmt.Errorf("finished phase without winner")
		}
		*p = PhaseFinished(in.Winner)
	default:
		return fmt.Errorf("unknown phase %q", in.Kind)
	}
	return nil
}

// State is the state derived from folding a rule set over an event log.
// It is never an independent source of truth.
type State struct {
	Score  Score `json:"score"`
	Server Slot  `json:"server"`
	Phase  Phase `json:"phase"`
}

// Winner returns the winner, present iff the phase is Finished.
func (s State) Winner() (Slot, bool) {
	return s.Phase.Winner()
}
