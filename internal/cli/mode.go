package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/ir"
)

// NewModeCommand groups the game mode commands.
func NewModeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Manage game modes",
	}
	cmd.AddCommand(newModeListCommand(rootOpts))
	cmd.AddCommand(newModeAddCommand(rootOpts))
	cmd.AddCommand(newModeImportCommand(rootOpts))
	return cmd
}

func newModeListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List game modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			modes, err := s.svc.ListGameModes(s.ctx)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(modes)
			}
			for _, gm := range modes {
				printMode(s.out.Writer, gm)
			}
			return nil
		},
	}
}

func newModeAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		gm        ir.GameMode
		serveType string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a game mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			gm.Name = args[0]
			if gm.Rules.ServeType, err = ir.ParseServeType(serveType); err != nil {
				return s.fail(err)
			}
			saved, err := s.svc.CreateGameMode(s.ctx, gm)
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(saved)
			}
			printMode(s.out.Writer, saved)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&gm.Slug, "slug", "", "URL-safe key (default derived from the name)")
	flags.StringVar(&gm.Description, "description", "", "free-form description")
	flags.IntVar(&gm.Rules.PointsToWin, "points", 11, "points needed to win")
	flags.IntVar(&gm.Rules.ServesBeforeChange, "serves", 2, "serves before the serve changes")
	flags.BoolVar(&gm.Rules.DeuceEnabled, "deuce", true, "require a two point lead at the target")
	flags.IntVar(&gm.Rules.ServesInDeuce, "deuce-serves", 1, "serves before the serve changes in deuce")
	flags.StringVar(&serveType, "serve-type", string(ir.ServeFree), "free or fixed")
	return cmd
}

func newModeImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.cue>",
		Short: "Import game modes from a CUE catalogue",
		Long: `Import game modes from a CUE catalogue.

The file declares modes under "modes". Every mode is unified with the
built-in schema, so omitted fields take their defaults. Modes are upserted
by slug.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			modes, err := s.svc.ImportGameModes(s.ctx, args[0])
			if err != nil {
				return s.fail(err)
			}
			if s.json() {
				return s.out.Success(modes)
			}
			fmt.Fprintf(s.out.Writer, "Imported %d game mode(s) from %s\n", len(modes), args[0])
			for _, gm := range modes {
				printMode(s.out.Writer, gm)
			}
			return nil
		},
	}
}
