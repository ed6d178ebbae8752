package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"coffeemasters/internal/models"
	"coffeemasters/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/pending", h.HandleGetPendingOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandlePlaceOrder)
}

// HandleGetOrders retrieves all orders, synced and local-only.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders(c.UserContext())
	if err != nil {
		h.logger.Error("failed to get orders", zap.Error(err))
		return errorResponse(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetPendingOrders retrieves the orders waiting for sync.
func (h *OrderHandler) HandleGetPendingOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetPendingOrders(c.UserContext())
	if err != nil {
		h.logger.Error("failed to get pending orders", zap.Error(err))
		return errorResponse(c, "Could not retrieve pending orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its server or local ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		return errorResponse(c, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// HandlePlaceOrder turns the cart into an order.
// 201 means the storefront accepted it, 202 that it was saved for offline sync.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var request struct {
		CustomerInfo models.CustomerInfo `json:"customer_info"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	order, err := h.service.PlaceOrder(c.UserContext(), request.CustomerInfo)
	if err != nil {
		h.logger.Warn("failed to place order", zap.Error(err))
		return errorResponse(c, "Could not place order", err)
	}

	if order.IsLocalOnly {
		return c.Status(fiber.StatusAccepted).JSON(order)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}
