package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	MatchID string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify stored matches by replaying their event logs",
		Long: `Replay every stored event log from scratch and verify that:
  - deriving the log twice gives identical states
  - deriving every prefix agrees with the incremental fold
  - the cached score, server, status and winner agree with the fold

Exit codes:
  0 - all matches replay deterministically
  1 - at least one match failed verification
  2 - command error (database cannot be opened, unknown match, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MatchID, "match", "", "replay a single match")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	reports, err := s.svc.Replay(s.ctx, opts.MatchID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load matches", err)
	}

	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}

	if s.json() {
		return outputReplayJSON(s.out, reports, failed)
	}
	return outputReplayText(s.out, reports, failed)
}

// replayResult is the JSON payload of the replay command.
type replayResult struct {
	Matches int                   `json:"matches"`
	Failed  int                   `json:"failed"`
	Reports []engine.ReplayReport `json:"reports"`
}

func outputReplayJSON(out *OutputFormatter, reports []engine.ReplayReport, failed int) error {
	resp := CLIResponse{
		Status: "ok",
		Data:   replayResult{Matches: len(reports), Failed: failed, Reports: reports},
	}
	if failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "NON_DETERMINISTIC",
			Message: fmt.Sprintf("%d of %d match(es) failed replay", failed, len(reports)),
		}
	}

	enc := json.NewEncoder(out.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode JSON", err)
	}

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Message: "replay verification failed", Reported: true}
	}
	return nil
}

func outputReplayText(out *OutputFormatter, reports []engine.ReplayReport, failed int) error {
	if len(reports) == 0 {
		fmt.Fprintln(out.Writer, "No matches to replay")
		return nil
	}

	for _, r := range reports {
		if r.OK() {
			fmt.Fprintf(out.Writer, "✓ %s: %d event(s), %s %s\n", r.MatchID, r.Events, r.Final.Score, r.Final.Phase)
			out.VerboseLog("  log=%s state=%s", r.LogHash, r.FinalHash)
			continue
		}
		fmt.Fprintf(out.Writer, "✗ %s: %s\n", r.MatchID, replayFailure(r))
	}

	if failed > 0 {
		fmt.Fprintf(out.Writer, "\n%d of %d match(es) failed replay\n", failed, len(reports))
		return &ExitError{Code: ExitFailure, Message: "replay verification failed", Reported: true}
	}
	fmt.Fprintf(out.Writer, "\nAll %d match(es) replay deterministically\n", len(reports))
	return nil
}

func replayFailure(r engine.ReplayReport) string {
	switch {
	case r.Error != "":
		return r.Error
	case !r.Deterministic:
		return "derivation is not deterministic"
	case !r.Incremental:
		return fmt.Sprintf("incremental fold diverges at event %d", r.Divergence)
	default:
		return "stored score, status or winner disagrees with the event log"
	}
}
