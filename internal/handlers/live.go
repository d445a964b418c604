package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"masquerade/internal/models"
	"masquerade/internal/services"
)

// LiveHandler streams a user's outbound event queue over WebSocket for
// debugging and admin tooling. The subscriber sees every event as it is
// enqueued; slow readers lose events rather than backpressuring the queue.
type LiveHandler struct {
	tap *services.LiveTap
}

// NewLiveHandler creates a new live feed handler
func NewLiveHandler(tap *services.LiveTap) *LiveHandler {
	return &LiveHandler{tap: tap}
}

// Upgrade gates the route to WebSocket upgrade requests.
func (h *LiveHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle serves one live feed connection.
// GET /api/debug/live/:userId
func (h *LiveHandler) Handle() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		watchedUser := conn.Params("userId")
		if watchedUser == "" {
			_ = conn.Close()
			return
		}

		sub := &services.LiveSubscriber{
			ConnID: uuid.NewString(),
			UserID: watchedUser,
			Events: make(chan models.ClientEvent, 64),
		}
		h.tap.Add(sub)
		defer h.tap.Remove(sub.ConnID)

		// Reader goroutine: only watches for close.
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
			case event, ok := <-sub.Events:
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					log.Printf("❌ [LIVE] Write failed for %s: %v", sub.ConnID, err)
					return
				}
			case <-done:
				return
			}
		}
	})
}
