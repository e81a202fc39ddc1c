package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/parleyhq/parley-backend/internal/services"
)

// CreateSession creates a new chat session
func CreateSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Title string `json:"title"`
		}

		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		session, err := svc.Engine.CreateSession(c.Context(), req.Title)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(session)
	}
}

// GetSessions returns all sessions, most recently active first
func GetSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions, err := svc.Engine.ListSessions(c.Context())
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"sessions": sessions,
		})
	}
}

// GetSession returns a session with its most recent page of messages
func GetSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		session, messages, err := svc.Engine.GetSession(c.Context(), sessionID)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"session":  session,
			"messages": messages,
		})
	}
}

// UpdateSession renames a session
func UpdateSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		var req struct {
			Title string `json:"title"`
		}

		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Title is required",
			})
		}

		session, err := svc.Engine.RenameSession(c.Context(), sessionID, req.Title)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(session)
	}
}

// DeleteSession deletes a session and all of its content
func DeleteSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		if err := svc.Engine.DeleteSession(c.Context(), sessionID); err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"message": "Session deleted successfully",
		})
	}
}

// GetSessionMessages returns a page of messages for a session.
// Pages run oldest-first; pass before=<message id> to page further back.
func GetSessionMessages(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		limit := c.QueryInt("limit")
		before := c.Query("before")

		messages, err := svc.Engine.ListMessages(c.Context(), sessionID, limit, before)
		if err != nil {
			return errorJSON(c, err)
		}

		resp := fiber.Map{
			"messages": messages,
		}
		if len(messages) > 0 {
			resp["next_before"] = messages[0].ID
		}

		return c.JSON(resp)
	}
}

// GetSessionContext returns the assembled context package for a session
// without appending anything
func GetSessionContext(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		pkg, err := svc.Engine.BuildContext(c.Context(), sessionID)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(pkg)
	}
}

// SummarizeSession forces a summarization pass over the session's
// unsummarized window
func SummarizeSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")

		summary, err := svc.Engine.Summarize(c.Context(), sessionID)
		if err != nil {
			return errorJSON(c, err)
		}

		if summary == nil {
			return c.JSON(fiber.Map{
				"summarized": false,
			})
		}

		return c.JSON(fiber.Map{
			"summarized": true,
			"summary":    summary,
		})
	}
}
