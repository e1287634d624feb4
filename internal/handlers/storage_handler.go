package handlers

import (
	"log"

	"ghiblify/internal/services"

	"github.com/gofiber/fiber/v2"
)

// StorageHandler handles storage provisioning requests.
type StorageHandler struct {
	service *services.StorageService
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(service *services.StorageService) *StorageHandler {
	return &StorageHandler{
		service: service,
	}
}

// RegisterRoutes registers the storage routes.
func (h *StorageHandler) RegisterRoutes(router fiber.Router) {
	storageRoutes := router.Group("/storage")
	storageRoutes.Post("/provision", h.HandleProvision)
}

// HandleProvision idempotently ensures the temp-uploads bucket exists.
func (h *StorageHandler) HandleProvision(c *fiber.Ctx) error {
	if err := h.service.Provision(c.Context()); err != nil {
		log.Printf("Error provisioning upload bucket: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not provision storage bucket",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Storage bucket setup completed",
	})
}
