package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/config"
	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
	"github.com/roach88/rally/internal/testutil"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "rally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := app.New(context.Background(), st, app.Options{
		Clock:  testutil.NewFixedClock(),
		IDs:    testutil.NewSequentialIDs("match"),
		Logger: logger,
	})
	require.NoError(t, err)
	return New(svc, logger)
}

// do sends a request and decodes the JSON response into out (if non-nil).
func do(t *testing.T, a *fiber.App, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createPlayers(t *testing.T, a *fiber.App) (ir.Player, ir.Player) {
	t.Helper()
	var alice, bob ir.Player
	require.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/users", store.UserInput{Name: "Alice"}, &alice))
	require.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/users", store.UserInput{Name: "Bob", Color: "green"}, &bob))
	return alice, bob
}

func TestUsers(t *testing.T) {
	a := newTestApp(t)
	alice, bob := createPlayers(t, a)
	assert.Equal(t, "blue", alice.Color)
	assert.Equal(t, "green", bob.Color)

	var users []ir.Player
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/users", nil, &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)

	var updated ir.Player
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodPut, "/api/users/"+string(alice.ID), store.UserInput{Name: "Alicia"}, &updated))
	assert.Equal(t, "Alicia", updated.Name)

	var errBody ErrorBody
	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/users", store.UserInput{}, &errBody))
	assert.Equal(t, "INVALID_INPUT", errBody.Code)

	assert.Equal(t, http.StatusNotFound, do(t, a, http.MethodGet, "/api/users/ghost/stats", nil, &errBody))
	assert.Equal(t, "NOT_FOUND", errBody.Code)
}

func TestModes(t *testing.T) {
	a := newTestApp(t)

	var modes []ir.GameMode
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/modes", nil, &modes))
	assert.Len(t, modes, 3)

	var gm ir.GameMode
	req := CreateModeRequest{Name: "Club 15", Rules: ir.RuleSet{PointsToWin: 15, ServesBeforeChange: 3, DeuceEnabled: true, ServesInDeuce: 1, ServeType: ir.ServeFree}}
	assert.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/modes", req, &gm))
	assert.Equal(t, "club-15", gm.Slug)

	var errBody ErrorBody
	assert.Equal(t, http.StatusConflict, do(t, a, http.MethodPost, "/api/modes", req, &errBody))
	assert.Equal(t, "DUPLICATE", errBody.Code)

	req.Name = "Broken"
	req.Rules.PointsToWin = 0
	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/modes", req, &errBody))
	assert.Equal(t, "INVALID_RULES", errBody.Code)
}

func TestMatchFlow(t *testing.T) {
	a := newTestApp(t)
	alice, bob := createPlayers(t, a)

	var m engine.Match
	start := app.StartInput{Player1: alice.ID, Player2: bob.ID, Mode: "turbo-7"}
	require.Equal(t, http.StatusCreated, do(t, a, http.MethodPost, "/api/match/start", start, &m))
	assert.Equal(t, "match-0001", m.ID)
	assert.Equal(t, ir.StatusInProgress, m.Status)

	var errBody ErrorBody
	assert.Equal(t, http.StatusConflict, do(t, a, http.MethodPost, "/api/match/match-0001/point", PointRequest{Scorer: "p1"}, &errBody))
	assert.Equal(t, "SERVER_NOT_SET", errBody.Code)

	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/match/match-0001/server", ServerRequest{Server: "p1"}, &m))
	assert.Equal(t, ir.P1, m.FirstServer)

	for i := 0; i < 7; i++ {
		require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/match/match-0001/point", PointRequest{Scorer: string(bob.ID)}, &m))
	}
	assert.Equal(t, ir.StatusFinished, m.Status)
	assert.Equal(t, bob.ID, m.WinnerID)
	assert.Equal(t, 7, m.Log.Len())

	var stats map[string]int
	require.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/users/"+string(bob.ID)+"/stats", nil, &stats))
	assert.Equal(t, map[string]int{"matches_played": 1, "wins": 1, "losses": 0}, stats)

	assert.Equal(t, http.StatusConflict, do(t, a, http.MethodPost, "/api/match/match-0001/point", PointRequest{Scorer: "p2"}, &errBody))
	assert.Equal(t, "MATCH_NOT_IN_PROGRESS", errBody.Code)

	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/match/match-0001/undo", nil, &m))
	assert.Equal(t, ir.StatusInProgress, m.Status)
	assert.Equal(t, ir.Score{P2: 6}, m.State.Score)

	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/match/match-0001/cancel", nil, &m))
	assert.Equal(t, ir.StatusCancelled, m.Status)

	assert.Equal(t, http.StatusConflict, do(t, a, http.MethodPost, "/api/match/match-0001/undo", nil, &errBody))
	assert.Equal(t, "MATCH_CANCELLED", errBody.Code)

	var got engine.Match
	require.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/match/match-0001", nil, &got))
	assert.Equal(t, m.Log.Events(), got.Log.Events())
	assert.Equal(t, m.State, got.State)

	var list []engine.Match
	require.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/match/user/"+string(alice.ID), nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "match-0001", list[0].ID)
}

func TestMatchErrors(t *testing.T) {
	a := newTestApp(t)
	alice, _ := createPlayers(t, a)

	var errBody ErrorBody
	assert.Equal(t, http.StatusNotFound, do(t, a, http.MethodGet, "/api/match/nope", nil, &errBody))
	assert.Equal(t, "NOT_FOUND", errBody.Code)

	start := app.StartInput{Player1: alice.ID, Player2: alice.ID}
	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/match/start", start, &errBody))
	assert.Equal(t, "SAME_PLAYER", errBody.Code)

	start = app.StartInput{Player1: alice.ID, Player2: "ghost"}
	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/match/start", start, &errBody))
	assert.Equal(t, "UNKNOWN_PLAYER", errBody.Code)

	assert.Equal(t, http.StatusNotFound, do(t, a, http.MethodGet, "/api/nothing-here", nil, &errBody))
	assert.Equal(t, "NOT_FOUND", errBody.Code)
}

func TestMalformedBody(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Equal(t, "BAD_REQUEST", errBody.Code)
}

func TestServe_RejectsPublicAddress(t *testing.T) {
	a := newTestApp(t)

	err := Serve(context.Background(), a, "0.0.0.0:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, config.ErrNotLoopback)
}
