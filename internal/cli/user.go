package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
)

// NewUserCommand groups the player commands.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage players",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	cmd.AddCommand(newUserListCommand(rootOpts))
	cmd.AddCommand(newUserUpdateCommand(rootOpts))
	cmd.AddCommand(newUserStatsCommand(rootOpts))
	return cmd
}

func addProfileFlags(cmd *cobra.Command, in *store.UserInput) {
	cmd.Flags().StringVar(&in.Nickname, "nickname", "", "display nickname")
	cmd.Flags().StringVar(&in.Color, "color", "", "avatar color (default "+store.DefaultColor+")")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "avatar icon")
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in store.UserInput
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			in.Name = args[0]
			p, err := s.svc.CreateUser(s.ctx, in)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(p)
			}
			printUser(s.out.Writer, p)
			return nil
		},
	}
	addProfileFlags(cmd, &in)
	return cmd
}

func newUserListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			users, err := s.svc.ListUsers(s.ctx)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(users)
			}
			for _, p := range users {
				printUser(s.out.Writer, p)
			}
			return nil
		},
	}
}

func newUserUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var in store.UserInput
	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Edit a player's profile",
		Long:  "Edit a player's profile. Only the given flags change; counters are never touched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			id := ir.PlayerID(args[0])
			cur, err := s.svc.GetUser(s.ctx, id)
			if err != nil {
				return s.fail(err)
			}

			next := store.UserInput{Name: cur.Name, Nickname: cur.Nickname, Color: cur.Color, Icon: cur.Icon}
			flags := cmd.Flags()
			if flags.Changed("name") {
				next.Name = in.Name
			}
			if flags.Changed("nickname") {
				next.Nickname = in.Nickname
			}
			if flags.Changed("color") {
				next.Color = in.Color
			}
			if flags.Changed("icon") {
				next.Icon = in.Icon
			}

			p, err := s.svc.UpdateUser(s.ctx, id, next)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(p)
			}
			printUser(s.out.Writer, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "player name")
	addProfileFlags(cmd, &in)
	return cmd
}

// statsResult is the JSON shape of "user stats".
type statsResult struct {
	ID            ir.PlayerID `json:"id"`
	MatchesPlayed int         `json:"matches_played"`
	Wins          int         `json:"wins"`
	Losses        int         `json:"losses"`
}

func newUserStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Show a player's match counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			id := ir.PlayerID(args[0])
			st, err := s.svc.UserStatistics(s.ctx, id)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(statsResult{ID: id, MatchesPlayed: st.MatchesPlayed, Wins: st.Wins, Losses: st.Losses()})
			}
			printStats(s.out.Writer, id, st)
			return nil
		},
	}
}
