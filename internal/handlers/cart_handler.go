package handlers

import (
	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/models"
	"coffeemasters/internal/services"
)

// CartHandler handles HTTP requests for the cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Put("/", h.HandleSaveCart)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Delete("/items/:productId", h.HandleRemoveItem)
}

func cartResponse(c *fiber.Ctx, items []models.CartEntry, total float64) error {
	if items == nil {
		items = []models.CartEntry{}
	}
	return c.JSON(fiber.Map{
		"items": items,
		"total": total,
	})
}

// HandleGetCart returns the current cart.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	return cartResponse(c, h.service.Items(), h.service.Total())
}

// HandleAddItem adds one unit of a product.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var request struct {
		ProductID string `json:"product_id"`
	}
	if err := c.BodyParser(&request); err != nil || request.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "product_id is required",
		})
	}

	items, err := h.service.Add(c.UserContext(), request.ProductID)
	if err != nil {
		return errorResponse(c, "Could not add product to cart", err)
	}
	return cartResponse(c, items, h.service.Total())
}

// HandleRemoveItem removes a product from the cart.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	items, err := h.service.Remove(c.UserContext(), c.Params("productId"))
	if err != nil {
		return errorResponse(c, "Could not remove product from cart", err)
	}
	return cartResponse(c, items, h.service.Total())
}

// HandleSaveCart replaces the whole cart.
func (h *CartHandler) HandleSaveCart(c *fiber.Ctx) error {
	var entries []models.CartEntry
	if err := c.BodyParser(&entries); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	items, err := h.service.Save(c.UserContext(), entries)
	if err != nil {
		return errorResponse(c, "Could not save cart", err)
	}
	return cartResponse(c, items, h.service.Total())
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext()); err != nil {
		return errorResponse(c, "Could not clear cart", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
