package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/store"
)

// session is one opened database plus the service built on it.
type session struct {
	svc    *app.Service
	st     *store.Store
	out    *OutputFormatter
	logger *slog.Logger
	ctx    context.Context
}

// openSession opens the configured database and seeds the service.
// Callers must defer close.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = newLogger(cmd.ErrOrStderr(), slog.LevelInfo)
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if opts.Clock != nil {
		st.SetClock(opts.Clock.Now)
	}

	svc, err := app.New(ctx, st, app.Options{Clock: opts.Clock, IDs: opts.IDs, Logger: logger})
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load database", err)
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return &session{svc: svc, st: st, out: out, logger: logger, ctx: ctx}, nil
}

func (s *session) close() {
	if err := s.st.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// fail writes err through the formatter and returns the matching exit error.
// Internal failures exit with ExitCommandError, rejected commands with
// ExitFailure.
func (s *session) fail(err error) error {
	code, kind := app.Classify(err)
	if outErr := s.out.Error(code, err.Error(), nil); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	exit := ExitFailure
	if kind == app.KindInternal {
		exit = ExitCommandError
	}
	return &ExitError{Code: exit, Message: code, Err: err, Reported: true}
}

// json reports whether structured output was requested.
func (s *session) json() bool {
	return s.out.Format == "json"
}
