package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainState = "rally/state/v1"
	DomainLog   = "rally/log/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash fingerprints a derived state. Two states hash equal iff score,
// server and phase (including winner) are equal.
func StateHash(s State) (string, error) {
	canonical, err := MarshalCanonical(CanonicalState(s))
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// LogHash fingerprints a rule set, first server and event sequence. It
// identifies a replay input.
func LogHash(rs RuleSet, firstServer Slot, events []Slot) (string, error) {
	evs := make([]any, len(events))
	for i, e := range events {
		evs[i] = e.String()
	}
	obj := map[string]any{
		"rules":        CanonicalRules(rs),
		"first_server": firstServer.String(),
		"events":       evs,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("LogHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLog, canonical), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(s State) string {
	h, err := StateHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
