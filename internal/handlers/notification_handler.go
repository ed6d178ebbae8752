package handlers

import (
	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/notifications"
)

// NotificationHandler lists received push notifications and accepts local pushes.
type NotificationHandler struct {
	push *notifications.Handler
}

func NewNotificationHandler(push *notifications.Handler) *NotificationHandler {
	return &NotificationHandler{push: push}
}

func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	notificationRoutes := router.Group("/notifications")
	notificationRoutes.Get("/", h.HandleGetNotifications)
	notificationRoutes.Post("/push", h.HandlePush)
}

func (h *NotificationHandler) HandleGetNotifications(c *fiber.Ctx) error {
	return c.JSON(h.push.Recent())
}

// HandlePush delivers a payload the same way the message queue does.
func (h *NotificationHandler) HandlePush(c *fiber.Ctx) error {
	if err := h.push.Handle(c.UserContext(), c.Body()); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid push payload",
			"error":   err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusAccepted)
}
