// handlers/progression_routes.go
package handlers

import (
	"log/slog"

	"casefile-progress/middleware"
	"casefile-progress/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, svc *services.ProgressionService, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	// The gateway forwards /api/v1/game/s/user/... as /user/...
	user := app.Group("/user", middleware.UserContextMiddleware(logger))

	user.Post("/register", func(c *fiber.Ctx) error {
		var req struct {
			ReferralCode string `json:"referral_code"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, err)
			}
		}
		res, err := svc.Register(c.UserContext(), services.RegisterInput{
			UserID:       middleware.UserID(c),
			Email:        middleware.UserEmail(c),
			ReferralCode: req.ReferralCode,
		})
		if err == nil && res.Created {
			c.Status(fiber.StatusCreated)
		}
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Get("/progress", func(c *fiber.Ctx) error {
		res, err := svc.GetProgress(c.UserContext(), middleware.UserID(c))
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Get("/progress/achievements", func(c *fiber.Ctx) error {
		res, err := svc.GetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil || !res.Success {
			return respond(c, logger, res.Outcome, err, res.Outcome)
		}
		return c.JSON(fiber.Map{
			"success":      true,
			"achievements": res.Achievements,
			"catalog":      svc.DescribeAchievements(res.Progress),
		})
	})

	user.Post("/progress/cases/:caseID/complete", func(c *fiber.Ctx) error {
		var req struct {
			Points    int64 `json:"points"`
			TimeSpent int64 `json:"time_spent"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, err)
			}
		}
		res, err := svc.CompleteCase(c.UserContext(), middleware.UserID(c), services.CaseCompletion{
			CaseID:    c.Params("caseID"),
			Points:    req.Points,
			TimeSpent: req.TimeSpent,
		})
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Post("/progress/hints/consume", func(c *fiber.Ctx) error {
		res, err := svc.ConsumeHint(c.UserContext(), middleware.UserID(c))
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Get("/streak", func(c *fiber.Ctx) error {
		res, err := svc.StreakStatus(c.UserContext(), middleware.UserID(c))
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Post("/streak/claim", func(c *fiber.Ctx) error {
		res, err := svc.ClaimDailyStreak(c.UserContext(), middleware.UserID(c))
		if err == nil && res.Kind == services.KindEligibility {
			retryAfter(c, res.HoursRemaining)
		}
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Get("/referral/validate", func(c *fiber.Ctx) error {
		res, err := svc.ValidateReferralCode(c.UserContext(), middleware.UserID(c), c.Query("code"))
		return respond(c, logger, res.Outcome, err, res)
	})

	user.Post("/referral/apply", func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := svc.ApplyReferral(c.UserContext(), middleware.UserID(c), req.Code)
		return respond(c, logger, res.Outcome, err, res)
	})

	// Admin endpoints
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(logger), middleware.RequireRole("admin"))

	admin.Post("/achievements/reset", func(c *fiber.Ctx) error {
		var req struct {
			UserIDs       []string `json:"user_ids"`
			ResetProgress bool     `json:"reset_progress"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, err)
			}
		}
		res, err := svc.BulkResetAchievements(c.UserContext(), services.BulkResetInput{
			UserIDs:       req.UserIDs,
			ResetProgress: req.ResetProgress,
			Actor:         middleware.UserID(c),
		})
		return respond(c, logger, res.Outcome, err, res)
	})
}
