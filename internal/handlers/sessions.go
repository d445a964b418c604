package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"masquerade/internal/services"
)

// SessionsHandler starts contract sessions on behalf of the launcher flow.
type SessionsHandler struct {
	sessions *services.SessionRegistry
	presence *services.PresenceService
	splitter *services.Autosplitter
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(sessions *services.SessionRegistry, presence *services.PresenceService, splitter *services.Autosplitter) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, presence: presence, splitter: splitter}
}

// startSessionRequest is the body of the session start call.
type startSessionRequest struct {
	SessionID  string `json:"sessionId"`
	ContractID string `json:"contractId"`
	Difficulty int    `json:"difficulty"`
	DoScoring  *bool  `json:"doScoring"`
}

// Start creates and registers a session for the authenticated user.
// POST /api/sessions
func (h *SessionsHandler) Start(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req startSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ContractID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "contractId is required",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	doScoring := true
	if req.DoScoring != nil {
		doScoring = *req.DoScoring
	}

	// Unresolvable contracts fail fatally inside NewSession; guard here so
	// a bad client request cannot take the server down.
	if h.sessions.Resolver().Resolve(req.ContractID, gameVersion(c)) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown contract",
		})
	}

	session := h.sessions.NewSession(req.SessionID, req.ContractID, userID, req.Difficulty, gameVersion(c), doScoring)

	if h.presence != nil {
		manifest := h.sessions.Resolver().Resolve(req.ContractID, gameVersion(c))
		scenePath := ""
		if manifest != nil {
			scenePath = manifest.Metadata.ScenePath
		}
		h.presence.SwapToLocationStatus(userID, req.ContractID, scenePath)
	}
	if h.splitter != nil {
		h.splitter.StartMission()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sessionId":  session.ID,
		"contractId": session.ContractID,
		"scored":     session.Scored,
	})
}
