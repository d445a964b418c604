package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"masquerade/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions *services.SessionRegistry
	queue    *services.PushQueue
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *services.SessionRegistry, queue *services.PushQueue) *HealthHandler {
	return &HealthHandler{sessions: sessions, queue: queue}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	queuedEvents, queuedMessages := h.queue.Depth()
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"sessions":        h.sessions.Count(),
		"queued_events":   queuedEvents,
		"queued_messages": queuedMessages,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
