package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/engine"
	"github.com/roach88/rally/internal/ir"
)

// NewMatchCommand groups the match commands.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Score matches",
		Long: `Score matches point by point.

Players are referred to by slot ("p1", "p2") or by player id. Every command
prints the match after it was applied.`,
	}
	cmd.AddCommand(newMatchStartCommand(rootOpts))
	cmd.AddCommand(newMatchServerCommand(rootOpts))
	cmd.AddCommand(newMatchPointCommand(rootOpts))
	cmd.AddCommand(newMatchUndoCommand(rootOpts))
	cmd.AddCommand(newMatchCancelCommand(rootOpts))
	cmd.AddCommand(newMatchShowCommand(rootOpts))
	cmd.AddCommand(newMatchListCommand(rootOpts))
	return cmd
}

// matchCommand builds a subcommand that runs fn and prints the resulting
// match.
func matchCommand(rootOpts *RootOptions, use, short string, args cobra.PositionalArgs, fn func(s *session, args []string) (*engine.Match, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			m, err := fn(s, args)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(m)
			}
			printMatch(s.out.Writer, m)
			return nil
		},
	}
}

func newMatchStartCommand(rootOpts *RootOptions) *cobra.Command {
	var in app.StartInput
	cmd := matchCommand(rootOpts, "start <player1-id> <player2-id>", "Start a match", cobra.ExactArgs(2),
		func(s *session, args []string) (*engine.Match, error) {
			in.Player1 = ir.PlayerID(args[0])
			in.Player2 = ir.PlayerID(args[1])
			return s.svc.StartMatch(s.ctx, in)
		})
	cmd.Flags().StringVar(&in.Mode, "mode", app.DefaultGameMode, "game mode id or slug")
	cmd.Flags().StringVar(&in.FirstServer, "server", "", "first server (p1, p2 or a player id)")
	return cmd
}

func newMatchServerCommand(rootOpts *RootOptions) *cobra.Command {
	return matchCommand(rootOpts, "server <match-id> <p1|p2|player-id>", "Choose who serves first", cobra.ExactArgs(2),
		func(s *session, args []string) (*engine.Match, error) {
			return s.svc.SetFirstServer(s.ctx, args[0], args[1])
		})
}

func newMatchPointCommand(rootOpts *RootOptions) *cobra.Command {
	return matchCommand(rootOpts, "point <match-id> <p1|p2|player-id>", "Record a point", cobra.ExactArgs(2),
		func(s *session, args []string) (*engine.Match, error) {
			return s.svc.AddPoint(s.ctx, args[0], args[1])
		})
}

func newMatchUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return matchCommand(rootOpts, "undo <match-id>", "Remove the last point", cobra.ExactArgs(1),
		func(s *session, args []string) (*engine.Match, error) {
			return s.svc.UndoLastPoint(s.ctx, args[0])
		})
}

func newMatchCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return matchCommand(rootOpts, "cancel <match-id>", "Abandon a match", cobra.ExactArgs(1),
		func(s *session, args []string) (*engine.Match, error) {
			return s.svc.CancelMatch(s.ctx, args[0])
		})
}

func newMatchShowCommand(rootOpts *RootOptions) *cobra.Command {
	return matchCommand(rootOpts, "show <match-id>", "Show a match", cobra.ExactArgs(1),
		func(s *session, args []string) (*engine.Match, error) {
			return s.svc.GetMatch(s.ctx, args[0])
		})
}

func newMatchListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a player's matches, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			matches, err := s.svc.ListUserMatches(s.ctx, ir.PlayerID(args[0]))
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(s.out.Writer, "No matches")
				return nil
			}
			for _, m := range matches {
				printMatchLine(s.out.Writer, m)
			}
			return nil
		},
	}
}
