package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/services"
)

type PreferenceHandler struct {
	service *services.PreferenceService
}

func NewPreferenceHandler(service *services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

func (h *PreferenceHandler) RegisterRoutes(router fiber.Router) {
	prefRoutes := router.Group("/preferences")
	prefRoutes.Get("/", h.HandleGetPreferences)
	prefRoutes.Get("/:key", h.HandleGetPreference)
	prefRoutes.Put("/:key", h.HandleSetPreference)
}

func (h *PreferenceHandler) HandleGetPreferences(c *fiber.Ctx) error {
	prefs, err := h.service.All(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not retrieve preferences", err)
	}
	return c.JSON(prefs)
}

// HandleGetPreference answers with the stored value, or with ?default= when
// nothing is stored.
func (h *PreferenceHandler) HandleGetPreference(c *fiber.Ctx) error {
	key := c.Params("key")

	var def any
	if raw := c.Query("default"); raw != "" {
		def = raw
	}
	value, err := h.service.Get(c.UserContext(), key, def)
	if err != nil {
		return errorResponse(c, "Could not retrieve preference", err)
	}
	return c.JSON(fiber.Map{"key": key, "value": value})
}

func (h *PreferenceHandler) HandleSetPreference(c *fiber.Ctx) error {
	var request struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.BodyParser(&request); err != nil || len(request.Value) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "value is required",
		})
	}

	var value any
	if err := json.Unmarshal(request.Value, &value); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "value must be JSON",
			"error":   err.Error(),
		})
	}
	if err := h.service.Set(c.UserContext(), c.Params("key"), value); err != nil {
		return errorResponse(c, "Could not save preference", err)
	}
	return c.JSON(fiber.Map{"key": c.Params("key"), "value": value})
}
