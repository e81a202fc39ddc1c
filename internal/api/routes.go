package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/parleyhq/parley-backend/internal/api/handlers"
	"github.com/parleyhq/parley-backend/internal/api/middleware"
	"github.com/parleyhq/parley-backend/internal/auth"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, authService *auth.Service, logger *logrus.Logger) {
	api := app.Group("/api/v1")

	// Health check (no authentication, no rate limit)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "parley-backend",
		})
	})

	// Outer limit for everything else in the group. It runs before auth,
	// so it keys by client IP; the chat tier below runs after auth and
	// keys by caller.
	api.Use(middleware.DefaultRateLimit())

	// Scope middlewares. Each authenticates and checks the scope in one
	// pass, so routes carry exactly one auth middleware.
	sessionsRead := middleware.RequireScope(authService, "sessions:read")
	sessionsWrite := middleware.RequireScope(authService, "sessions:write")
	chatWrite := middleware.RequireScope(authService, "chat:write")
	keysRead := middleware.RequireScope(authService, "keys:read")
	keysWrite := middleware.RequireScope(authService, "keys:write")

	// Session management
	api.Post("/sessions", sessionsWrite, handlers.CreateSession(svc))
	api.Get("/sessions", sessionsRead, handlers.GetSessions(svc))
	api.Get("/sessions/:id", sessionsRead, handlers.GetSession(svc))
	api.Put("/sessions/:id", sessionsWrite, handlers.UpdateSession(svc))
	api.Delete("/sessions/:id", sessionsWrite, handlers.DeleteSession(svc))
	api.Get("/sessions/:id/messages", sessionsRead, handlers.GetSessionMessages(svc))
	api.Get("/sessions/:id/context", sessionsRead, handlers.GetSessionContext(svc))
	api.Post("/sessions/:id/summarize", sessionsWrite, handlers.SummarizeSession(svc))

	// Chat endpoints share one rate limit budget
	chatHandler := handlers.NewChatHandler(svc, logger)
	chatLimit := middleware.ChatRateLimit()
	api.Post("/chat", chatWrite, chatLimit, chatHandler.Chat)
	api.Post("/chat/stream", chatWrite, chatLimit, chatHandler.StreamChatSSE)

	// API key management
	api.Get("/keys", keysRead, handlers.ListAPIKeys(authService))
	api.Post("/keys", keysWrite, handlers.CreateAPIKey(authService))
	api.Delete("/keys/:id", keysWrite, handlers.RevokeAPIKey(authService))

	// WebSocket upgrade gate: authenticate before the protocol switch.
	// Credentials arrive as ?token= (API key or access token) or in the
	// Authorization header.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		credential := c.Query("token")
		if credential == "" {
			header := c.Get("Authorization")
			if bearer := auth.ExtractTokenFromBearer(header); bearer != "" {
				credential = bearer
			} else {
				credential = header
			}
		}
		if credential == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required for WebSocket",
			})
		}

		if key, err := authService.ValidateAPIKey(c.Context(), credential); err == nil {
			if !key.HasScope("chat:write") {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Insufficient scope",
				})
			}
			return c.Next()
		}

		if claims, err := authService.ValidateToken(credential); err == nil {
			if !models.ScopesAllow(claims.Scopes, "chat:write") {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error": "Insufficient scope",
				})
			}
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required for WebSocket",
		})
	})

	app.Get("/ws/chat", websocket.New(chatHandler.StreamChat))
}
