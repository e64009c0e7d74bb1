package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateHashDeterminism(t *testing.T) {
	s := State{Score: Score{P1: 3, P2: 4}, Server: P1, Phase: PhaseInProgress()}

	h1, err := StateHash(s)
	require.NoError(t, err)
	h2, err := StateHash(s)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "StateHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestStateHashChangesWithInput(t *testing.T) {
	base := State{Score: Score{P1: 10, P2: 10}, Server: P1, Phase: PhaseDeuce()}
	h := MustStateHash(base)

	variants := []State{
		{Score: Score{P1: 10, P2: 11}, Server: P1, Phase: PhaseDeuce()},
		{Score: Score{P1: 10, P2: 10}, Server: P2, Phase: PhaseDeuce()},
		{Score: Score{P1: 10, P2: 10}, Server: P1, Phase: PhaseInProgress()},
	}
	for _, v := range variants {
		assert.NotEqual(t, h, MustStateHash(v), "state %+v must hash differently", v)
	}

	assert.NotEqual(t,
		MustStateHash(State{Score: Score{P1: 12, P2: 10}, Phase: PhaseFinished(P1)}),
		MustStateHash(State{Score: Score{P1: 12, P2: 10}, Phase: PhaseFinished(P2)}),
		"winner is part of the fingerprint")
}

func TestLogHashDomainSeparation(t *testing.T) {
	events := []Slot{P1, P2, P1}
	lh, err := LogHash(Standard(), P1, events)
	require.NoError(t, err)

	other, err := LogHash(Standard(), P2, events)
	require.NoError(t, err)
	assert.NotEqual(t, lh, other, "first server is part of the replay input")

	shorter, err := LogHash(Standard(), P1, events[:2])
	require.NoError(t, err)
	assert.NotEqual(t, lh, shorter)
}
