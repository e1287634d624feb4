package handlers

import (
	"errors"
	"log"

	"ghiblify/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SubscriptionHandler handles subscription reads, checkout and the
// billing webhook.
type SubscriptionHandler struct {
	service *services.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
	}
}

// RegisterRoutes registers the authenticated subscription routes.
func (h *SubscriptionHandler) RegisterRoutes(router fiber.Router) {
	subRoutes := router.Group("/subscription")
	subRoutes.Get("/", h.HandleGetSubscription)
	subRoutes.Post("/checkout", h.HandleCreateCheckout)
}

// RegisterWebhookRoutes registers the public billing webhook. The
// provider authenticates itself with the signature header, not a JWT.
func (h *SubscriptionHandler) RegisterWebhookRoutes(router fiber.Router) {
	router.Post("/billing/webhook", h.HandleWebhook)
}

// HandleGetSubscription returns the authenticated user's billing state.
func (h *SubscriptionHandler) HandleGetSubscription(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	status, err := h.service.FetchSubscription(userID)
	if err != nil {
		log.Printf("Error fetching subscription for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve subscription",
			"error":   err.Error(),
		})
	}
	return c.JSON(status)
}

// CheckoutRequest represents the request body for starting a checkout.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// HandleCreateCheckout starts a subscription checkout session.
func (h *SubscriptionHandler) HandleCreateCheckout(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.PriceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "priceId is required",
		})
	}

	sessionID, err := h.service.CreateCheckoutSession(userID, req.PriceID)
	if err != nil {
		log.Printf("Error creating checkout session for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error creating checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"sessionId": sessionID,
	})
}

// HandleWebhook verifies and processes a billing-provider event.
func (h *SubscriptionHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	if err := h.service.HandleWebhook(payload, signature); err != nil {
		if errors.Is(err, services.ErrWebhookSignature) {
			log.Printf("Webhook signature verification failed: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Webhook signature verification failed",
			})
		}
		log.Printf("Error handling webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Error handling webhook",
		})
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}
