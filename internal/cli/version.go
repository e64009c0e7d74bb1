package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/ir"
)

type versionResult struct {
	Version   string `json:"version"`
	LogFormat string `json:"log_format"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the rally version and event log format",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			res := versionResult{Version: ir.AppVersion, LogFormat: ir.LogFormatVersion}
			if rootOpts.Format == "json" {
				return out.Success(res)
			}
			return out.Success(fmt.Sprintf("rally %s (event log format %s)", res.Version, res.LogFormat))
		},
	}
}
