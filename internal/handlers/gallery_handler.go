package handlers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"ghiblify/internal/models"
	"ghiblify/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// GalleryHandler handles HTTP requests for a user's gallery.
type GalleryHandler struct {
	service  *services.GalleryService
	validate *validator.Validate
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(service *services.GalleryService) *GalleryHandler {
	return &GalleryHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the gallery routes.
func (h *GalleryHandler) RegisterRoutes(router fiber.Router) {
	galleryRoutes := router.Group("/gallery")
	galleryRoutes.Get("/", h.HandleGetGallery)
	galleryRoutes.Post("/", h.HandleSaveToGallery)
	galleryRoutes.Delete("/:id", h.HandleDeleteFromGallery)
}

// SaveToGalleryRequest represents the request body to save a
// generation result.
type SaveToGalleryRequest struct {
	Prompt         string `json:"prompt" validate:"required"`
	NegativePrompt string `json:"negative_prompt"`
	ImageURL       string `json:"image_url" validate:"required,url"`
	MagicLevel     int    `json:"magic_level" validate:"gte=0,lte=100"`
}

// HandleSaveToGallery persists a generation result for the
// authenticated user.
func (h *GalleryHandler) HandleSaveToGallery(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req SaveToGalleryRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing save to gallery request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	result := models.GenerationResult{
		ImageURL:  req.ImageURL,
		Prompt:    req.Prompt,
		CreatedAt: time.Now(),
	}
	image, err := h.service.SaveToGallery(userID, result, req.MagicLevel, req.NegativePrompt)
	if err != nil {
		log.Printf("Error saving to gallery for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save image to gallery",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(image)
}

// HandleGetGallery returns the authenticated user's gallery.
func (h *GalleryHandler) HandleGetGallery(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	images, err := h.service.GetUserGallery(userID)
	if err != nil {
		log.Printf("Error getting gallery for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve gallery",
			"error":   err.Error(),
		})
	}
	return c.JSON(images)
}

// HandleDeleteFromGallery deletes one of the authenticated user's
// gallery images. Deleting someone else's image is rejected.
func (h *GalleryHandler) HandleDeleteFromGallery(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	imageID := c.Params("id")

	image, err := h.service.GetImage(imageID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Gallery image with ID %s not found", imageID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve gallery image",
			"error":   err.Error(),
		})
	}
	if image.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "You can only delete your own images",
		})
	}

	if err := h.service.DeleteFromGallery(imageID); err != nil {
		log.Printf("Error deleting gallery image %s: %v", imageID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete gallery image",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Gallery image %s deleted successfully", imageID),
	})
}
