package handlers

import (
	"log"

	"ghiblify/internal/services"
	"ghiblify/pkg/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RealtimeHandler streams feed and saved-list change events to
// websocket clients. Closing the socket cancels the underlying broker
// subscriptions so nothing keeps pushing to a gone view.
type RealtimeHandler struct {
	broker      *realtime.Broker
	authService *services.AuthService
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(broker *realtime.Broker, authService *services.AuthService) *RealtimeHandler {
	return &RealtimeHandler{
		broker:      broker,
		authService: authService,
	}
}

// RegisterRoutes registers the websocket route. Browsers cannot set an
// Authorization header on websocket dials, so the JWT rides in the
// token query parameter; anonymous clients still get the public feed
// topic.
func (h *RealtimeHandler) RegisterRoutes(router fiber.Router) {
	wsRoutes := router.Group("/ws")
	wsRoutes.Use(func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if token := c.Query("token"); token != "" {
			claims, err := h.authService.ValidateToken(token)
			if err == nil {
				c.Locals("user_id", claims["user_id"])
			}
		}
		return c.Next()
	})
	wsRoutes.Get("/feed", websocket.New(h.handleFeedSocket))
}

func (h *RealtimeHandler) handleFeedSocket(conn *websocket.Conn) {
	defer conn.Close()

	userID, _ := conn.Locals("user_id").(string)

	feedSub := h.broker.Subscribe(services.FeedTopic)
	defer feedSub.Cancel()

	var savedCh <-chan realtime.Event
	if userID != "" {
		savedSub := h.broker.Subscribe(services.SavedTopic(userID))
		defer savedSub.Cancel()
		savedCh = savedSub.C
	}

	// Reader goroutine: its only job is to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-feedSub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Realtime write failed, dropping client: %v", err)
				return
			}
		case event, ok := <-savedCh:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Realtime write failed, dropping client: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
