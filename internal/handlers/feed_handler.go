package handlers

import (
	"fmt"
	"log"
	"strings"

	"ghiblify/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// FeedHandler handles HTTP requests for the community feed.
type FeedHandler struct {
	service  *services.FeedService
	validate *validator.Validate
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(service *services.FeedService) *FeedHandler {
	return &FeedHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the feed routes.
func (h *FeedHandler) RegisterRoutes(router fiber.Router) {
	feedRoutes := router.Group("/feed")
	feedRoutes.Get("/", h.HandleGetFeed)
	feedRoutes.Post("/", h.HandleShareImage)
	feedRoutes.Get("/saved", h.HandleGetSaved)
	feedRoutes.Post("/:id/like", h.HandleLikeImage)
	feedRoutes.Post("/:id/save", h.HandleSaveImage)
	feedRoutes.Delete("/:id/save", h.HandleUnsaveImage)
}

// HandleGetFeed returns one page of the feed. Page numbers start at 1.
func (h *FeedHandler) HandleGetFeed(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)

	feedPage, err := h.service.LoadFeed(page)
	if err != nil {
		log.Printf("Error loading feed page %d: %v", page, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load feed",
			"error":   err.Error(),
		})
	}
	return c.JSON(feedPage)
}

// ShareImageRequest represents the request body to publish an image
// to the feed.
type ShareImageRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url" validate:"required,url"`
}

// HandleShareImage publishes one of the authenticated user's images
// to the community feed.
func (h *FeedHandler) HandleShareImage(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req ShareImageRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing share image request body: %v", err)
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

	image, err := h.service.ShareImage(userID, req.Prompt, req.ImageURL)
	if err != nil {
		log.Printf("Error sharing image for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not share image",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(image)
}

// HandleLikeImage increments an image's like counter.
func (h *FeedHandler) HandleLikeImage(c *fiber.Ctx) error {
	imageID := c.Params("id")

	likes, err := h.service.LikeImage(imageID)
	if err != nil {
		log.Printf("Error liking image %s: %v", imageID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Feed image with ID %s not found", imageID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not like image",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"image_id": imageID,
		"likes":    likes,
	})
}

// HandleSaveImage bookmarks a feed image for the authenticated user.
func (h *FeedHandler) HandleSaveImage(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	imageID := c.Params("id")

	if err := h.service.SaveImage(userID, imageID); err != nil {
		log.Printf("Error saving image %s for user %s: %v", imageID, userID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Feed image with ID %s not found", imageID),
			})
		}
		if strings.Contains(err.Error(), "already saved") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Image is already saved",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not save image",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Image saved",
	})
}

// HandleUnsaveImage removes the authenticated user's bookmark.
func (h *FeedHandler) HandleUnsaveImage(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	imageID := c.Params("id")

	if err := h.service.UnsaveImage(userID, imageID); err != nil {
		log.Printf("Error unsaving image %s for user %s: %v", imageID, userID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Saved image with ID %s not found", imageID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not unsave image",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Image unsaved",
	})
}

// HandleGetSaved returns the authenticated user's saved images.
func (h *FeedHandler) HandleGetSaved(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	entries, err := h.service.GetSavedImages(userID)
	if err != nil {
		log.Printf("Error getting saved images for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve saved images",
			"error":   err.Error(),
		})
	}
	return c.JSON(entries)
}
