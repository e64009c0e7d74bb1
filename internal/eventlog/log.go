// Package eventlog implements the append-only scoring event log of a match.
//
// The log is the single source of truth for match state. It supports exactly
// two mutations: Append at the end and TruncateLast (undo). Events are never
// inserted out of order or edited in place, so a fold over any prefix is
// deterministic and replayable.
package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/rally/internal/ir"
)

// ErrEmptyLog is returned by TruncateLast on a log with zero events.
var ErrEmptyLog = errors.New("event log is empty")

// Log is an ordered sequence of scoring events. The sequence index of an
// event is its position. The zero value is an empty, usable log.
type Log struct {
	events []ir.Slot
}

// New returns a log holding a copy of events. Every event must be a valid slot.
func New(events ...ir.Slot) (Log, error) {
	var l Log
	for i, e := range events {
		if err := l.Append(e); err != nil {
			return Log{}, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return l, nil
}

// Append adds one event at the end of the log.
func (l *Log) Append(scorer ir.Slot) error {
	if !scorer.Valid() {
		return fmt.Errorf("append: invalid scorer %d", scorer)
	}
	l.events = append(l.events, scorer)
	return nil
}

// TruncateLast removes and returns the most recent event.
func (l *Log) TruncateLast() (ir.Slot, error) {
	n := len(l.events)
	if n == 0 {
		return ir.SlotNone, ErrEmptyLog
	}
	last := l.events[n-1]
	l.events = l.events[:n-1]
	return last, nil
}

// Len returns the number of events.
func (l Log) Len() int {
	return len(l.events)
}

// Last returns the most recent event, if any.
func (l Log) Last() (ir.Slot, bool) {
	if len(l.events) == 0 {
		return ir.SlotNone, false
	}
	return l.events[len(l.events)-1], true
}

// Prefix returns a copy of the first n events. n is clamped to [0, Len()].
func (l Log) Prefix(n int) []ir.Slot {
	if n < 0 {
		n = 0
	}
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]ir.Slot, n)
	copy(out, l.events[:n])
	return out
}

// Events returns a copy of the full event sequence.
func (l Log) Events() []ir.Slot {
	return l.Prefix(len(l.events))
}

// Clone returns an independent copy of the log.
func (l Log) Clone() Log {
	return Log{events: l.Events()}
}

// MarshalJSON encodes the log as an ordered array of scorer tags, e.g.
// ["p1","p2","p1"]. This is the durable form of the log.
func (l Log) MarshalJSON() ([]byte, error) {
	tags := make([]string, len(l.events))
	for i, e := range l.events {
		tags[i] = e.String()
	}
	return json.Marshal(tags)
}

// UnmarshalJSON decodes an array of scorer tags. Any invalid or empty tag
// makes the whole log invalid.
func (l *Log) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("decode event log: %w", err)
	}
	events := make([]ir.Slot, 0, len(tags))
	for i, tag := range tags {
		s, err := ir.ParseSlot(tag)
		if err != nil || !s.Valid() {
			return fmt.Errorf("decode event log: event %d: invalid scorer %q", i, tag)
		}
		events = append(events, s)
	}
	l.events = events
	return nil
}
