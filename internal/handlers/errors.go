package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/api"
	"coffeemasters/internal/services"
	"coffeemasters/internal/storage"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, api.ErrRejected):
		return fiber.StatusBadGateway
	case errors.Is(err, storage.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, message string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}
