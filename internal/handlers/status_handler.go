package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"coffeemasters/internal/cache"
	"coffeemasters/internal/connectivity"
	"coffeemasters/internal/outbox"
)

// StatusHandler reports the state of the offline layer.
type StatusHandler struct {
	monitor *connectivity.Monitor
	cache   *cache.Manager
	outbox  *outbox.Coordinator
}

func NewStatusHandler(monitor *connectivity.Monitor, manager *cache.Manager, coordinator *outbox.Coordinator) *StatusHandler {
	return &StatusHandler{monitor: monitor, cache: manager, outbox: coordinator}
}

func (h *StatusHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/status", h.HandleStatus)
}

// HandleStatus answers with connectivity, cache version and sync backlog.
// degraded means the last cache install failed and an older version is served.
func (h *StatusHandler) HandleStatus(c *fiber.Ctx) error {
	pending, err := h.outbox.Pending(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not read sync queue", err)
	}
	dead, err := h.outbox.DeadLetters(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not read sync queue", err)
	}

	return c.JSON(fiber.Map{
		"online":        h.monitor.Online(),
		"cache_version": h.cache.ActiveVersion(),
		"degraded":      h.cache.Degraded(),
		"sync_pending":  len(pending),
		"dead_letters":  len(dead),
		"time":          time.Now().Format(time.RFC3339),
	})
}
