package engine

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies wall-clock timestamps for match start and end times.
//
// Timestamps are informational only. Ordering of scoring events is always
// positional in the event log, never by time, so replay is independent of
// the clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator generates match identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUIDv4 match IDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
