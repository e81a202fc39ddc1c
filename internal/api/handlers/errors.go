package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/repository"
)

// errorJSON maps service errors onto HTTP statuses with a JSON error body.
// Unknown errors become 500s.
func errorJSON(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var backendErr *backend.Error
	switch {
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrAPIKeyNotFound):
		status = fiber.StatusNotFound
	case errors.As(err, &backendErr):
		switch backendErr.Code {
		case backend.CodeRateLimited:
			status = fiber.StatusTooManyRequests
		case backend.CodeTimeout, backend.CodeUnavailable:
			status = fiber.StatusServiceUnavailable
		default:
			status = fiber.StatusBadGateway
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
