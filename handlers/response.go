// handlers/response.go
package handlers

import (
	"log/slog"
	"strconv"

	"casefile-progress/services"

	"github.com/gofiber/fiber/v2"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindEligibility:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusServiceUnavailable
	}
}

// respond writes body with the status implied by outcome. A non-nil err is a
// storage failure and the client is told to retry.
func respond(c *fiber.Ctx, logger *slog.Logger, outcome services.Outcome, err error, body any) error {
	if err != nil {
		logger.Error("request failed",
			"event", "http_storage_failure",
			"module", "handlers",
			"layer", "transport",
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
		)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success":   false,
			"message":   "progress storage unavailable, please retry",
			"kind":      services.KindStorage,
			"retryable": true,
		})
	}
	if !outcome.Success {
		return c.Status(statusFor(outcome.Kind)).JSON(body)
	}
	return c.JSON(body)
}

func badRequest(c *fiber.Ctx, cause error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "invalid JSON: " + cause.Error(),
		"kind":    services.KindValidation,
	})
}

func retryAfter(c *fiber.Ctx, hours int) {
	if hours > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(hours*3600))
	}
}
