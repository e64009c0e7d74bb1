package ir

import "fmt"

// Slot identifies one side of a head-to-head match.
//
// The zero value SlotNone means "not set" and is used for a match whose first
// server has not been chosen yet.
type Slot uint8

const (
	SlotNone Slot = iota
	P1
	P2
)

// Valid reports whether s names a player (P1 or P2).
func (s Slot) Valid() bool {
	return s == P1 || s == P2
}

// Other returns the opposing slot. SlotNone maps to itself.
func (s Slot) Other() Slot {
	switch s {
	case P1:
		return P2
	case P2:
		return P1
	default:
		return SlotNone
	}
}

// String returns the tag form used in the event log ("p1", "p2").
func (s Slot) String() string {
	switch s {
	case P1:
		return "p1"
	case P2:
		return "p2"
	default:
		return ""
	}
}

// ParseSlot parses a slot tag. Accepts "p1"/"p2" and "1"/"2".
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "p1", "P1", "1":
		return P1, nil
	case "p2", "P2", "2":
		return P2, nil
	case "":
		return SlotNone, nil
	default:
		return SlotNone, fmt.Errorf("invalid player slot %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
