package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/services"
)

// MenuHandler serves the menu snapshot.
type MenuHandler struct {
	service *services.MenuService
	maxAge  time.Duration
}

// NewMenuHandler creates a new MenuHandler. maxAge is the snapshot freshness limit.
func NewMenuHandler(service *services.MenuService, maxAge time.Duration) *MenuHandler {
	return &MenuHandler{service: service, maxAge: maxAge}
}

// RegisterRoutes registers the menu routes with the Fiber app.
func (h *MenuHandler) RegisterRoutes(router fiber.Router) {
	menuRoutes := router.Group("/menu")
	menuRoutes.Get("/", h.HandleGetMenu)
	menuRoutes.Get("/status", h.HandleGetStatus)
	menuRoutes.Get("/products/:id", h.HandleGetProduct)
}

// HandleGetMenu returns the snapshot in catalog shape.
func (h *MenuHandler) HandleGetMenu(c *fiber.Ctx) error {
	categories, err := h.service.Categories(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not retrieve menu", err)
	}
	return c.JSON(categories)
}

// HandleGetStatus reports whether the snapshot is fresh. ?max_age=30m overrides the limit.
func (h *MenuHandler) HandleGetStatus(c *fiber.Ctx) error {
	maxAge := h.maxAge
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "max_age must be a positive duration",
			})
		}
		maxAge = d
	}

	valid, err := h.service.IsValid(c.UserContext(), maxAge)
	if err != nil {
		return errorResponse(c, "Could not check menu snapshot", err)
	}
	return c.JSON(fiber.Map{
		"valid":   valid,
		"max_age": maxAge.String(),
	})
}

// HandleGetProduct returns a product of the snapshot.
func (h *MenuHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.Product(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, "Could not retrieve product", err)
	}
	return c.JSON(product)
}
