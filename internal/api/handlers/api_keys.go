package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyhq/parley-backend/internal/auth"
)

// APIKeyRequest represents a request to create an API key
type APIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// ListAPIKeys returns all API key records. Secret hashes never serialize.
func ListAPIKeys(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keys, err := authService.ListKeys(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to retrieve API keys",
			})
		}

		return c.JSON(fiber.Map{
			"api_keys": keys,
		})
	}
}

// CreateAPIKey creates a new API key. The plaintext key appears only in
// this response and cannot be recovered later.
func CreateAPIKey(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req APIKeyRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Name is required",
			})
		}
		if len(req.Scopes) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "At least one scope is required",
			})
		}

		plaintext, key, err := authService.CreateKey(c.Context(), req.Name, req.Scopes)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidScope) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create API key",
			})
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"key":    plaintext,
			"record": key,
		})
	}
}

// RevokeAPIKey revokes an API key
func RevokeAPIKey(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keyID := c.Params("id")

		if err := authService.RevokeKey(c.Context(), keyID); err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"message": "API key revoked successfully",
		})
	}
}
