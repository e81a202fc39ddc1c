package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// rateLimitKey identifies the caller for rate limiting purposes, preferring
// the API key id, then the token subject, then the client IP.
func rateLimitKey(prefix string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if keyID := c.Locals("api_key_id"); keyID != nil {
			return fmt.Sprintf("%s:key:%s", prefix, keyID)
		}
		if subject := Subject(c); subject != "" {
			return fmt.Sprintf("%s:sub:%s", prefix, subject)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, c.IP())
	}
}

// DefaultRateLimit returns a default rate limiter (100 requests per minute)
func DefaultRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          100,
		Expiration:   1 * time.Minute,
		KeyGenerator: rateLimitKey("api"),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// ChatRateLimit returns a rate limiter for chat endpoints (30 per minute).
// Failed requests do not count against the limit.
func ChatRateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:                30,
		Expiration:         1 * time.Minute,
		KeyGenerator:       rateLimitKey("chat"),
		SkipFailedRequests: true,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Chat rate limit exceeded. Please wait before sending more messages.",
			})
		},
	})
}
