package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"coffeemasters/internal/services"
)

// StorageHandler handles backup and maintenance of the local store.
type StorageHandler struct {
	service *services.StorageService
	logger  *zap.Logger
}

func NewStorageHandler(service *services.StorageService, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{service: service, logger: logger}
}

func (h *StorageHandler) RegisterRoutes(router fiber.Router) {
	storageRoutes := router.Group("/storage")
	storageRoutes.Get("/info", h.HandleInfo)
	storageRoutes.Get("/export", h.HandleExport)
	storageRoutes.Post("/import", h.HandleImport)
	storageRoutes.Delete("/", h.HandleClearAll)
}

func (h *StorageHandler) HandleInfo(c *fiber.Ctx) error {
	info, err := h.service.Info(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not read storage info", err)
	}
	return c.JSON(info)
}

func (h *StorageHandler) HandleExport(c *fiber.Ctx) error {
	data, err := h.service.Export(c.UserContext())
	if err != nil {
		return errorResponse(c, "Could not export data", err)
	}
	c.Attachment("coffee-masters-backup.json")
	return c.JSON(data)
}

func (h *StorageHandler) HandleImport(c *fiber.Ctx) error {
	var data services.ExportData
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid backup",
			"error":   err.Error(),
		})
	}
	if err := h.service.Import(c.UserContext(), &data); err != nil {
		h.logger.Error("import failed", zap.Error(err))
		return errorResponse(c, "Could not import data", err)
	}
	return c.JSON(fiber.Map{"message": "Data imported successfully"})
}

func (h *StorageHandler) HandleClearAll(c *fiber.Ctx) error {
	if err := h.service.ClearAll(c.UserContext()); err != nil {
		h.logger.Error("clear failed", zap.Error(err))
		return errorResponse(c, "Could not clear data", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
