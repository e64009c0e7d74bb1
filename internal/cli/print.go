package cli

import (
	"fmt"
	"io"

	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
)

func printUser(w io.Writer, p ir.Player) {
	fmt.Fprintf(w, "%s  %s", p.ID, p.Name)
	if p.Nickname != "" {
		fmt.Fprintf(w, " (%s)", p.Nickname)
	}
	fmt.Fprintf(w, "  %s  played=%d wins=%d\n", p.Color, p.Stats.MatchesPlayed, p.Stats.Wins)
}

func printStats(w io.Writer, id ir.PlayerID, s ir.PlayerStatistics) {
	fmt.Fprintf(w, "%s  played=%d wins=%d losses=%d\n", id, s.MatchesPlayed, s.Wins, s.Losses())
}

func formatRules(rs ir.RuleSet) string {
	deuce := "no deuce"
	if rs.DeuceEnabled {
		deuce = fmt.Sprintf("deuce %d serve(s)", rs.ServesInDeuce)
	}
	return fmt.Sprintf("to %d, %d serve(s), %s, %s serve", rs.PointsToWin, rs.ServesBeforeChange, deuce, rs.ServeType)
}

func printMode(w io.Writer, gm ir.GameMode) {
	fmt.Fprintf(w, "%-3d %-16s %-16s %s\n", gm.ID, gm.Slug, gm.Name, formatRules(gm.Rules))
}

func printMatch(w io.Writer, m *engine.Match) {
	fmt.Fprintf(w, "Match %s [%s]\n", m.ID, m.Status)
	fmt.Fprintf(w, "  p1:     %s\n", m.Player1)
	fmt.Fprintf(w, "  p2:     %s\n", m.Player2)
	fmt.Fprintf(w, "  rules:  %s\n", formatRules(m.Rules))
	fmt.Fprintf(w, "  score:  %s\n", m.State.Score)
	fmt.Fprintf(w, "  server: %s\n", m.State.Server)
	fmt.Fprintf(w, "  phase:  %s\n", m.State.Phase)
	fmt.Fprintf(w, "  points: %d\n", m.Log.Len())
	if m.WinnerID != "" {
		fmt.Fprintf(w, "  winner: %s\n", m.WinnerID)
	}
}

func printMatchLine(w io.Writer, m *engine.Match) {
	fmt.Fprintf(w, "%s  %s  %s vs %s  %s\n", m.ID, m.Status, m.Player1, m.Player2, m.State.Score)
}
