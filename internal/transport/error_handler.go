package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"go.uber.org/zap"
)

// ErrorHandler renders handler errors as JSON {error}. Server errors are
// logged at error level and their message is not leaked to the client.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		log := observability.WithContextLogger(logger, c.UserContext())
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error("request error", fields...)
			message = "internal server error"
		} else {
			log.Warn("request rejected", fields...)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
