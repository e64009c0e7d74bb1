package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/roach88/rally/internal/app"
	"github.com/roach88/rally/internal/ir"
	"github.com/roach88/rally/internal/store"
)

// CreateModeRequest is the body of POST /api/modes.
type CreateModeRequest struct {
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Rules       ir.RuleSet `json:"rules"`
}

// PointRequest is the body of POST /api/match/:id/point. Scorer is a slot
// ("p1", "p2") or a participant's player id.
type PointRequest struct {
	Scorer string `json:"scorer"`
}

// ServerRequest is the body of POST /api/match/:id/server.
type ServerRequest struct {
	Server string `json:"server"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return nil
}

func listUsers(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.ListUsers(c.UserContext())
		if err != nil {
			return err
		}
		if users == nil {
			users = []ir.Player{}
		}
		return c.JSON(users)
	}
}

func createUser(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in store.UserInput
		if err := parseBody(c, &in); err != nil {
			return err
		}
		p, err := svc.CreateUser(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

func updateUser(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in store.UserInput
		if err := parseBody(c, &in); err != nil {
			return err
		}
		p, err := svc.UpdateUser(c.UserContext(), ir.PlayerID(c.Params("id")), in)
		if err != nil {
			return err
		}
		return c.JSON(p)
	}
}

func userStats(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.UserStatistics(c.UserContext(), ir.PlayerID(c.Params("id")))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"matches_played": st.MatchesPlayed,
			"wins":           st.Wins,
			"losses":         st.Losses(),
		})
	}
}

func listModes(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		modes, err := svc.ListGameModes(c.UserContext())
		if err != nil {
			return err
		}
		if modes == nil {
			modes = []ir.GameMode{}
		}
		return c.JSON(modes)
	}
}

func createMode(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateModeRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		gm, err := svc.CreateGameMode(c.UserContext(), ir.GameMode{
			Slug:        req.Slug,
			Name:        req.Name,
			Description: req.Description,
			Rules:       req.Rules,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(gm)
	}
}

func startMatch(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in app.StartInput
		if err := parseBody(c, &in); err != nil {
			return err
		}
		m, err := svc.StartMatch(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

func getMatch(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := svc.GetMatch(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

func userMatches(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		matches, err := svc.ListUserMatches(c.UserContext(), ir.PlayerID(c.Params("userId")))
		if err != nil {
			return err
		}
		if matches == nil {
			return c.JSON([]any{})
		}
		return c.JSON(matches)
	}
}

func setServer(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ServerRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		m, err := svc.SetFirstServer(c.UserContext(), c.Params("id"), req.Server)
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

func addPoint(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PointRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		m, err := svc.AddPoint(c.UserContext(), c.Params("id"), req.Scorer)
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

func undoPoint(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := svc.UndoLastPoint(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

func cancelMatch(svc *app.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := svc.CancelMatch(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}
