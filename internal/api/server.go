// Package api serves the rally command set over HTTP for the local
// front-end. The server only listens on loopback addresses.
//
// Routes:
//
//	GET  /api/users               list players
//	POST /api/users               create a player
//	PUT  /api/users/:id           edit a player
//	GET  /api/users/:id/stats     live win / played counters
//	GET  /api/modes               list game modes
//	POST /api/modes               create a game mode
//	POST /api/match/start         start a match
//	POST /api/match/:id/server    choose the first server
//	POST /api/match/:id/point     record a point
//	POST /api/match/:id/undo      undo the last point
//	POST /api/match/:id/cancel    abandon the match
//	GET  /api/match/:id           read a match
//	GET  /api/match/user/:userId  a player's matches, newest first
//
// Errors are returned as {"error": message, "code": CODE}.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/config"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// New builds the HTTP application around svc.
func New(svc *app.Service, logger *slog.Logger) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}

	a := fiber.New(fiber.Config{
		AppName:               "rally",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	a.Use(recover.New())
	a.Use(requestLogger(logger))

	api := a.Group("/api")

	api.Get("/users", listUsers(svc))
	api.Post("/users", createUser(svc))
	api.Put("/users/:id", updateUser(svc))
	api.Get("/users/:id/stats", userStats(svc))

	api.Get("/modes", listModes(svc))
	api.Post("/modes", createMode(svc))

	// Static segments are registered before /match/:id.
	api.Post("/match/start", startMatch(svc))
	api.Get("/match/user/:userId", userMatches(svc))
	api.Post("/match/:id/server", setServer(svc))
	api.Post("/match/:id/point", addPoint(svc))
	api.Post("/match/:id/undo", undoPoint(svc))
	api.Post("/match/:id/cancel", cancelMatch(svc))
	api.Get("/match/:id", getMatch(svc))

	return a
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, a *fiber.App, addr string, logger *slog.Logger) error {
	if err := config.CheckLoopback(addr); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- a.Listen(addr)
	}()
	logger.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info("api shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errc
	}
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorBody{Error: fe.Message, Code: httpCode(fe.Code)})
		}

		code, kind := app.Classify(err)
		status := statusFor(kind)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
		}
		return c.Status(status).JSON(ErrorBody{Error: err.Error(), Code: code})
	}
}

func statusFor(kind app.Kind) int {
	switch kind {
	case app.KindInvalid:
		return fiber.StatusBadRequest
	case app.KindNotFound:
		return fiber.StatusNotFound
	case app.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		return "HTTP_ERROR"
	}
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
}
