package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
	"github.com/roach88/rally/internal/testutil"
)

// cliEnv runs commands against one database. The clock and id generator are
// shared across invocations, like one long-lived process would see them.
type cliEnv struct {
	t     *testing.T
	db    string
	env   string
	clock *testutil.FixedClock
	ids   *testutil.SequentialIDs
}

func newCLIEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	return &cliEnv{
		t:     t,
		db:    filepath.Join(dir, "rally.db"),
		env:   filepath.Join(dir, "missing.env"),
		clock: testutil.NewFixedClock(),
		ids:   testutil.NewSequentialIDs("match"),
	}
}

// run executes rally with args and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{Clock: e.clock, IDs: e.ids, EnvFiles: []string{e.env}}
	cmd := NewRootCommandWithOptions(opts)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// response is CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func runJSON[T any](e *cliEnv, args ...string) (response[T], error) {
	e.t.Helper()
	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	var resp response[T]
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

func (e *cliEnv) addUser(name string) ir.Player {
	e.t.Helper()
	resp, err := runJSON[ir.Player](e, "user", "add", name)
	require.NoError(e.t, err)
	require.Equal(e.t, "ok", resp.Status)
	return resp.Data
}

func TestUserCommands(t *testing.T) {
	e := newCLIEnv(t)

	alice := e.addUser("Alice")
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, store.DefaultColor, alice.Color)
	assert.Equal(t, testutil.Epoch, alice.CreatedAt)

	resp, err := runJSON[ir.Player](e, "user", "add", "Bob", "--nickname", "bobby", "--color", "red")
	require.NoError(t, err)
	assert.Equal(t, "bobby", resp.Data.Nickname)
	assert.Equal(t, "red", resp.Data.Color)

	list, err := runJSON[[]ir.Player](e, "user", "list")
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "Alice", list.Data[0].Name)
	assert.Equal(t, "Bob", list.Data[1].Name)

	out, err := e.run("user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob (bobby)")
}

func TestUserUpdateChangesOnlyGivenFlags(t *testing.T) {
	e := newCLIEnv(t)
	alice := e.addUser("Alice")

	resp, err := runJSON[ir.Player](e, "user", "update", string(alice.ID), "--nickname", "ace")
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.Data.Name)
	assert.Equal(t, "ace", resp.Data.Nickname)
	assert.Equal(t, store.DefaultColor, resp.Data.Color)

	resp, err = runJSON[ir.Player](e, "user", "update", "nobody", "--name", "X")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestUserAddRequiresName(t *testing.T) {
	e := newCLIEnv(t)

	resp, err := runJSON[ir.Player](e, "user", "add", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestModeCommands(t *testing.T) {
	e := newCLIEnv(t)

	list, err := runJSON[[]ir.GameMode](e, "mode", "list")
	require.NoError(t, err)
	require.Len(t, list.Data, 3, "built-in modes are seeded")

	added, err := runJSON[ir.GameMode](e, "mode", "add", "Long Rally", "--points", "15", "--serves", "3", "--deuce=false")
	require.NoError(t, err)
	assert.Equal(t, "long-rally", added.Data.Slug)
	assert.Equal(t, ir.RuleSet{PointsToWin: 15, ServesBeforeChange: 3, DeuceEnabled: false, ServesInDeuce: 1, ServeType: ir.ServeFree}, added.Data.Rules)

	_, err = runJSON[ir.GameMode](e, "mode", "add", "Long Rally")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	bad, err := runJSON[ir.GameMode](e, "mode", "add", "Zero", "--points", "0")
	require.Error(t, err)
	require.NotNil(t, bad.Error)
	assert.Equal(t, "INVALID_RULES", bad.Error.Code)

	out, err := e.run("mode", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "standard-11")
	assert.Contains(t, out, "long-rally")
}

func TestModeImport(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("mode", "import", filepath.Join("..", "compiler", "testdata", "club.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 game mode(s)")

	list, err := runJSON[[]ir.GameMode](e, "mode", "list")
	require.NoError(t, err)
	assert.Len(t, list.Data, 6)

	_, err = e.run("mode", "import", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}

func TestMatchFlow(t *testing.T) {
	e := newCLIEnv(t)
	alice := e.addUser("Alice")
	bob := e.addUser("Bob")

	started, err := runJSON[engine.Match](e, "match", "start", string(alice.ID), string(bob.ID), "--mode", "turbo-7", "--server", "p1")
	require.NoError(t, err)
	assert.Equal(t, "match-0001", started.Data.ID)
	assert.Equal(t, ir.StatusInProgress, started.Data.Status)
	assert.Equal(t, ir.P1, started.Data.FirstServer)

	for i := 0; i < 6; i++ {
		_, err := e.run("match", "point", "match-0001", "p1")
		require.NoError(t, err)
	}
	finished, err := runJSON[engine.Match](e, "match", "point", "match-0001", string(alice.ID))
	require.NoError(t, err)
	assert.Equal(t, ir.StatusFinished, finished.Data.Status)
	assert.Equal(t, alice.ID, finished.Data.WinnerID)
	assert.Equal(t, ir.Score{P1: 7}, finished.Data.State.Score)

	stats, err := runJSON[statsResult](e, "user", "stats", string(alice.ID))
	require.NoError(t, err)
	assert.Equal(t, statsResult{ID: alice.ID, MatchesPlayed: 1, Wins: 1}, stats.Data)

	stats, err = runJSON[statsResult](e, "user", "stats", string(bob.ID))
	require.NoError(t, err)
	assert.Equal(t, statsResult{ID: bob.ID, MatchesPlayed: 1, Losses: 1}, stats.Data)

	undone, err := runJSON[engine.Match](e, "match", "undo", "match-0001")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusInProgress, undone.Data.Status)
	assert.Equal(t, ir.Score{P1: 6}, undone.Data.State.Score)

	stats, err = runJSON[statsResult](e, "user", "stats", string(alice.ID))
	require.NoError(t, err)
	assert.Equal(t, statsResult{ID: alice.ID}, stats.Data)

	out, err := e.run("match", "show", "match-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "Match match-0001 [in_progress]")
	assert.Contains(t, out, "score:  6-0")

	cancelled, err := runJSON[engine.Match](e, "match", "cancel", "match-0001")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusCancelled, cancelled.Data.Status)

	list, err := runJSON[[]engine.Match](e, "match", "list", string(bob.ID))
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, ir.StatusCancelled, list.Data[0].Status)
}

func TestMatchServerAfterStart(t *testing.T) {
	e := newCLIEnv(t)
	alice := e.addUser("Alice")
	bob := e.addUser("Bob")

	_, err := e.run("match", "start", string(alice.ID), string(bob.ID))
	require.NoError(t, err)

	resp, err := runJSON[engine.Match](e, "match", "point", "match-0001", "p1")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVER_NOT_SET", resp.Error.Code)

	set, err := runJSON[engine.Match](e, "match", "server", "match-0001", string(bob.ID))
	require.NoError(t, err)
	assert.Equal(t, ir.P2, set.Data.FirstServer)
	assert.Equal(t, ir.P2, set.Data.State.Server)

	_, err = e.run("match", "point", "match-0001", "p2")
	require.NoError(t, err)

	resp, err = runJSON[engine.Match](e, "match", "server", "match-0001", "p1")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MATCH_ALREADY_STARTED", resp.Error.Code)
}

func TestMatchErrors(t *testing.T) {
	e := newCLIEnv(t)
	alice := e.addUser("Alice")
	bob := e.addUser("Bob")
	_, err := e.run("match", "start", string(alice.ID), string(bob.ID), "--server", "p1")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"undo empty log", []string{"match", "undo", "match-0001"}, "NOTHING_TO_UNDO"},
		{"unknown scorer", []string{"match", "point", "match-0001", "carol"}, "UNKNOWN_PLAYER"},
		{"unknown match", []string{"match", "show", "match-9999"}, "NOT_FOUND"},
		{"same player", []string{"match", "start", string(alice.ID), string(alice.ID)}, "SAME_PLAYER"},
		{"unregistered player", []string{"match", "start", string(alice.ID), "ghost"}, "UNKNOWN_PLAYER"},
		{"unknown mode", []string{"match", "start", string(alice.ID), string(bob.ID), "--mode", "nope"}, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := runJSON[engine.Match](e, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.True(t, exitErr.Reported)

			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestMatchErrorText(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("match", "show", "match-0042")
	require.Error(t, err)
	assert.Contains(t, out, "Error [NOT_FOUND]")
}

func TestReplay(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("replay")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches to replay")

	alice := e.addUser("Alice")
	bob := e.addUser("Bob")
	_, err = e.run("match", "start", string(alice.ID), string(bob.ID), "--mode", "turbo-7", "--server", "p2")
	require.NoError(t, err)
	for _, scorer := range []string{"p1", "p2", "p2"} {
		_, err = e.run("match", "point", "match-0001", scorer)
		require.NoError(t, err)
	}

	out, err = e.run("replay")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ match-0001: 3 event(s), 1-2 in_progress")
	assert.Contains(t, out, "All 1 match(es) replay deterministically")

	resp, err := runJSON[replayResult](e, "replay", "--match", "match-0001")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Matches)
	assert.Equal(t, 0, resp.Data.Failed)
	require.Len(t, resp.Data.Reports, 1)
	assert.True(t, resp.Data.Reports[0].OK())
}

func TestReplayDetectsTamperedCache(t *testing.T) {
	e := newCLIEnv(t)
	alice := e.addUser("Alice")
	bob := e.addUser("Bob")
	_, err := e.run("match", "start", string(alice.ID), string(bob.ID), "--server", "p1")
	require.NoError(t, err)
	_, err = e.run("match", "point", "match-0001", "p1")
	require.NoError(t, err)

	st, err := store.Open(e.db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE matches SET score1 = 5 WHERE id = 'match-0001'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := e.run("replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ match-0001")
	assert.True(t, strings.Contains(out, "1 of 1 match(es) failed replay"), out)

	resp, err := runJSON[replayResult](e, "replay")
	require.Error(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NON_DETERMINISTIC", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("version")
	require.NoError(t, err)
	assert.Equal(t, "rally "+ir.AppVersion+" (event log format "+ir.LogFormatVersion+")\n", out)

	resp, err := runJSON[versionResult](e, "version")
	require.NoError(t, err)
	assert.Equal(t, versionResult{Version: ir.AppVersion, LogFormat: ir.LogFormatVersion}, resp.Data)

	out, err = e.run("--version")
	require.NoError(t, err)
	assert.Contains(t, out, ir.AppVersion)
}

func TestServeRejectsPublicAddress(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("serve", "--addr", "0.0.0.0:7311")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid listen address")
}

func TestInvalidDatabasePath(t *testing.T) {
	opts := &RootOptions{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}
	cmd := NewRootCommandWithOptions(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "no", "such", "dir", "rally.db"), "user", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
