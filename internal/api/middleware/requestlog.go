package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one structured line per completed request. Paths in
// skipPaths (health probes, typically) are not logged.
func RequestLogger(logger *logrus.Logger, skipPaths ...string) fiber.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		fields := logrus.Fields{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.IP(),
		}
		if method := c.Locals("auth_method"); method != nil {
			fields["auth_method"] = method
		}
		if subject := Subject(c); subject != "" {
			fields["subject"] = subject
		}

		entry := logger.WithFields(fields)
		switch {
		case err != nil:
			entry.WithError(err).Warn("request failed")
		case c.Response().StatusCode() >= 500:
			entry.Error("request failed")
		case c.Response().StatusCode() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}

		return err
	}
}
