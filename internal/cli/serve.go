package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/api"
	"github.com/roach88/rally/internal/config"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local JSON API",
		Long: `Serve the JSON API for a scoreboard front end.

The server only binds loopback addresses. When RALLY_MODES_FILE is set the
catalogue is imported before the server starts. Ctrl-C shuts down gracefully.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $RALLY_HTTP_ADDR or 127.0.0.1:7311)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}
	if err := config.CheckLoopback(addr); err != nil {
		return WrapExitError(ExitCommandError, "invalid listen address", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = newLogger(cmd.ErrOrStderr(), slog.LevelInfo)
	}
	slog.SetDefault(logger)

	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	if path := opts.Config.ModesFile; path != "" {
		if _, err := s.svc.ImportGameModes(s.ctx, path); err != nil {
			return s.fail(err)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := api.Serve(ctx, api.New(s.svc, logger), addr, logger); err != nil {
		return WrapExitError(ExitCommandError, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
