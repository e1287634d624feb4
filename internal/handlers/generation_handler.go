package handlers

import (
	"errors"
	"log"
	"strconv"

	"ghiblify/internal/services"

	"github.com/gofiber/fiber/v2"
)

// parseMagicLevel converts the optional multipart field; a missing or
// malformed value falls back to the service default.
func parseMagicLevel(v string) *int {
	if v == "" {
		return nil
	}
	level, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &level
}

// GenerationHandler handles HTTP requests for image generation.
type GenerationHandler struct {
	service *services.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(service *services.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		service: service,
	}
}

// RegisterRoutes registers the generation routes.
func (h *GenerationHandler) RegisterRoutes(router fiber.Router) {
	genRoutes := router.Group("/generate")
	genRoutes.Post("/", h.HandleGenerate)
	genRoutes.Post("/transform", h.HandleTransform)
	genRoutes.Get("/credits", h.HandleGetCredits)
}

// GenerateRequest represents the request body for a text generation.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	MagicLevel     *int   `json:"magic_level"`
	NegativePrompt string `json:"negative_prompt"`
}

func (h *GenerationHandler) generationError(c *fiber.Ctx, userID string, err error) error {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrPromptTooLong),
		errors.Is(err, services.ErrInvalidMagicLevel),
		errors.Is(err, services.ErrUploadTooLarge),
		errors.Is(err, services.ErrUnsupportedMIME):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrNoCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"message": "You've used all your free generations this week. Upgrade to premium for unlimited images.",
		})
	default:
		log.Printf("Error generating image for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to generate image",
		})
	}
}

// HandleGenerate generates a stylized image from a text prompt.
func (h *GenerationHandler) HandleGenerate(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing generate request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	result, err := h.service.GenerateFromText(c.Context(), userID, services.GenerateOptions{
		Prompt:         req.Prompt,
		MagicLevel:     req.MagicLevel,
		NegativePrompt: req.NegativePrompt,
	})
	if err != nil {
		return h.generationError(c, userID, err)
	}

	return c.JSON(fiber.Map{
		"result":            result,
		"remaining_credits": h.service.RemainingCredits(userID),
	})
}

// HandleTransform uploads an image and runs the transform generation.
// The multipart form carries the file under "image", plus optional
// "prompt" and "magic_level" fields.
func (h *GenerationHandler) HandleTransform(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "An image file is required",
			"error":   err.Error(),
		})
	}

	magicLevel := parseMagicLevel(c.FormValue("magic_level"))

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Error opening upload for user %s: %v", userID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not read uploaded file",
		})
	}
	defer file.Close()

	result, err := h.service.TransformImage(c.Context(), userID, services.TransformOptions{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		File:        file,
		Prompt:      c.FormValue("prompt"),
		MagicLevel:  magicLevel,
	})
	if err != nil {
		return h.generationError(c, userID, err)
	}

	return c.JSON(fiber.Map{
		"result":            result,
		"remaining_credits": h.service.RemainingCredits(userID),
	})
}

// HandleGetCredits reports the free generations the user has left.
func (h *GenerationHandler) HandleGetCredits(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	return c.JSON(fiber.Map{
		"remaining_credits": h.service.RemainingCredits(userID),
	})
}
