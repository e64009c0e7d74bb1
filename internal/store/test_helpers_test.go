package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/stats"
	"github.com/roach88/rally/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUsers registers two players and returns their ids.
func createTestUsers(t *testing.T, s *Store) (ir.PlayerID, ir.PlayerID) {
	t.Helper()
	ctx := context.Background()
	alice, err := s.CreateUser(ctx, UserInput{Name: "Alice"})
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, UserInput{Name: "Bob"})
	require.NoError(t, err)
	return alice.ID, bob.ID
}

// createTestController returns a controller that commits into s.
func createTestController(t *testing.T, s *Store, clock *testutil.FixedClock) (*engine.Controller, *stats.Aggregator) {
	t.Helper()
	agg := stats.NewAggregator()
	ctl := engine.NewController(agg,
		engine.WithCommitter(s),
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("match")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return ctl, agg
}
