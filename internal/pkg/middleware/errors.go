package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/projecthub/internal/pkg/autherr"
	"github.com/ManuelReschke/projecthub/internal/pkg/logger"
)

// Fail writes the JSON error envelope for err.
func Fail(c *fiber.Ctx, err error) error {
	status := autherr.Status(err)
	if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
		logger.FromFiber(c).Error("Request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   autherr.Code(err),
		"message": autherr.Message(err),
	})
}

// ErrorHandler is the fiber error handler of the API. Typed errors use the
// taxonomy mapping; fiber errors keep their status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && !autherr.IsAuthError(err) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":   errorCode(fe.Code),
			"message": fe.Message,
		})
	}
	return Fail(c, err)
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusUnprocessableEntity:
		return "validation_failed"
	default:
		if status >= fiber.StatusInternalServerError {
			return "internal_server_error"
		}
		return "error"
	}
}
