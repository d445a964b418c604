package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"masquerade/internal/models"
	"masquerade/internal/services"
)

// EventsHandler handles the EventsService sync endpoints the game client
// polls during play.
type EventsHandler struct {
	queue   *services.PushQueue
	metrics *services.EngineMetrics
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(queue *services.PushQueue, metrics *services.EngineMetrics) *EventsHandler {
	return &EventsHandler{queue: queue, metrics: metrics}
}

// gameVersion is carried as a route query/local set by the auth layer;
// defaults to the newest supported client.
func gameVersion(c *fiber.Ctx) string {
	if gv, ok := c.Locals("game_version").(string); ok && gv != "" {
		return gv
	}
	if gv := c.Query("gv"); gv != "" {
		return gv
	}
	return "h3"
}

// authedUser pulls the authenticated user id and verifies the body names
// the same user. Submitting events for someone else is a hard 403.
func authedUser(c *fiber.Ctx, bodyUserID string) (string, error) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return "", c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	if bodyUserID != "" && bodyUserID != userID {
		log.Printf("⚠️  [EVENTS] User %s submitted events for %s, rejecting", userID, bodyUserID)
		return "", c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Cannot submit events for another user",
		})
	}
	return userID, nil
}

// SaveAndSynchronizeEvents3 ingests a batch and drains the event queue.
// POST /authentication/api/userchannel/EventsService/SaveAndSynchronizeEvents3
func (h *EventsHandler) SaveAndSynchronizeEvents3(c *fiber.Ctx) error {
	started := time.Now()

	var req models.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, err := authedUser(c, req.UserID)
	if err != nil {
		return err
	}

	events, ok := req.DecodeValues()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "values must be an array",
		})
	}

	resp := h.queue.SaveAndSyncEvents3(userID, events, gameVersion(c), req.LastEventTicks)
	if h.metrics != nil {
		h.metrics.ObserveSyncDuration(time.Since(started))
	}
	return c.JSON(resp)
}

// SaveAndSynchronizeEvents4 is the v4 protocol: adds the push-message drain.
// POST /authentication/api/userchannel/EventsService/SaveAndSynchronizeEvents4
func (h *EventsHandler) SaveAndSynchronizeEvents4(c *fiber.Ctx) error {
	started := time.Now()

	var req models.SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, err := authedUser(c, req.UserID)
	if err != nil {
		return err
	}

	events, ok := req.DecodeValues()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "values must be an array",
		})
	}

	resp := h.queue.SaveAndSyncEvents4(userID, events, gameVersion(c), req.LastEventTicks, req.LastPushDt)
	if h.metrics != nil {
		h.metrics.ObserveSyncDuration(time.Since(started))
	}
	return c.JSON(resp)
}

// SaveEvents2 ingests a batch without draining; the response is the bare
// token array.
// POST /authentication/api/userchannel/EventsService/SaveEvents2
func (h *EventsHandler) SaveEvents2(c *fiber.Ctx) error {
	var req models.SaveEventsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	userID, err := authedUser(c, req.UserID)
	if err != nil {
		return err
	}

	events, ok := req.DecodeValues()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "values must be an array",
		})
	}

	tokens := h.queue.SaveEvents(userID, events, gameVersion(c))
	return c.JSON(tokens)
}
