package handlers

import (
	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/models"
	"coffeemasters/internal/outbox"
)

// SyncHandler exposes the outbox.
type SyncHandler struct {
	outbox *outbox.Coordinator
}

func NewSyncHandler(coordinator *outbox.Coordinator) *SyncHandler {
	return &SyncHandler{outbox: coordinator}
}

func (h *SyncHandler) RegisterRoutes(router fiber.Router) {
	syncRoutes := router.Group("/sync")
	syncRoutes.Get("/queue", h.HandleGetQueue)
	syncRoutes.Get("/dead-letters", h.HandleGetDeadLetters)
	syncRoutes.Post("/drain", h.HandleDrain)
}

func entriesOrEmpty(entries []models.SyncQueueEntry) []models.SyncQueueEntry {
	if entries == nil {
		return []models.SyncQueueEntry{}
	}
	return entries
}

func (h *SyncHandler) HandleGetQueue(c *fiber.Ctx) error {
	entries, err := h.outbox.Pending(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not retrieve sync queue", err)
	}
	return c.JSON(entriesOrEmpty(entries))
}

func (h *SyncHandler) HandleGetDeadLetters(c *fiber.Ctx) error {
	entries, err := h.outbox.DeadLetters(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not retrieve dead letters", err)
	}
	return c.JSON(entriesOrEmpty(entries))
}

// HandleDrain runs a drain now. If one is already running, the answer is 202 and
// that drain makes one more pass.
func (h *SyncHandler) HandleDrain(c *fiber.Ctx) error {
	result, err := h.outbox.Drain(c.UserContext())
	if err != nil {
		return errorResponse(c, "Sync failed", err)
	}
	if result.Coalesced {
		return c.Status(fiber.StatusAccepted).JSON(result)
	}
	return c.JSON(result)
}
