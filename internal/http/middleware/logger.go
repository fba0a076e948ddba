package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"formsapi/internal/logger"
)

// Logger logs each HTTP request as one JSON line on the process logger.
func Logger() fiber.Handler {
	return requestLogger(logger.Log)
}

// LoggerWithWriter logs to w instead of the process logger.
func LoggerWithWriter(w io.Writer) fiber.Handler {
	return requestLogger(logger.New(w))
}

func requestLogger(l *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := statusOf(c, err)

		entry := l.WithFields(logrus.Fields{
			"component":  "http",
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		})
		if id, ok := IdentityFrom(c); ok && !id.Anonymous() {
			entry = entry.WithField("user_id", id.UserID)
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
		return err
	}
}
