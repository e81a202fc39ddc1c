package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parleyhq/parley-backend/internal/auth"
	"github.com/parleyhq/parley-backend/internal/models"
)

// AuthConfig holds the auth middleware configuration
type AuthConfig struct {
	AuthService  *auth.Service
	RequireScope string // If set, requires this scope
}

// RequireScope creates a middleware that requires authentication carrying
// a specific scope
func RequireScope(authService *auth.Service, scope string) fiber.Handler {
	return AuthMiddleware(AuthConfig{
		AuthService:  authService,
		RequireScope: scope,
	})
}

// AuthMiddleware is the main authentication middleware
func AuthMiddleware(config AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")

		// Check for API key first; keys are self-identifying by prefix
		if apiKey := auth.ExtractAPIKey(authHeader); apiKey != "" {
			key, err := config.AuthService.ValidateAPIKey(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid API key",
				})
			}

			if config.RequireScope != "" && !key.HasScope(config.RequireScope) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Insufficient scope",
				})
			}

			storeAuthContext(c, "key:"+key.Name, key.Scopes, "api_key")
			c.Locals("api_key_id", key.ID)
			return c.Next()
		}

		// Fall back to JWT bearer token
		token := auth.ExtractTokenFromBearer(authHeader)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		claims, err := config.AuthService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		if config.RequireScope != "" && !models.ScopesAllow(claims.Scopes, config.RequireScope) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient scope",
			})
		}

		storeAuthContext(c, claims.Subject, claims.Scopes, "jwt")
		return c.Next()
	}
}

// storeAuthContext stores the caller identity in the fiber context
func storeAuthContext(c *fiber.Ctx, subject string, scopes []string, authMethod string) {
	c.Locals("subject", subject)
	c.Locals("scopes", scopes)
	c.Locals("auth_method", authMethod)
}

// Subject retrieves the authenticated caller identity from the fiber context
func Subject(c *fiber.Ctx) string {
	if subject := c.Locals("subject"); subject != nil {
		if s, ok := subject.(string); ok {
			return s
		}
	}
	return ""
}
