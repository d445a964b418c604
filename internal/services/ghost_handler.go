package services

import (
	"log"

	"masquerade/internal/models"
)

// GhostModeHandler claims the head-to-head versus events before the
// built-in dispatch table sees them. All other events pass through.
type GhostModeHandler struct{}

// NewGhostModeHandler creates the hook.
func NewGhostModeHandler() *GhostModeHandler {
	return &GhostModeHandler{}
}

// Claim consumes the ghost-mode events, mutating only the session's ghost
// sub-state.
func (h *GhostModeHandler) Claim(session *models.ContractSession, event *models.ClientEvent) bool {
	switch event.Name {
	case models.EventGhostPlayerDied:
		session.Ghost.Deaths++
		return true

	case models.EventGhostTargetUnnoticed:
		session.Ghost.UnnoticedKills++
		return true

	case models.EventOpponents:
		var payload models.OpponentsPayload
		if err := event.DecodeValue(&payload); err != nil {
			log.Printf("⚠️  [GHOST] Undecodable Opponents payload for session %s: %v", session.ID, err)
			return true
		}
		session.Ghost.Opponents = payload.ConnectedSessions
		return true

	case models.EventMatchOver:
		var payload models.MatchOverPayload
		if err := event.DecodeValue(&payload); err != nil {
			log.Printf("⚠️  [GHOST] Undecodable MatchOver payload for session %s: %v", session.ID, err)
			return true
		}
		session.Ghost.Score = payload.MyScore
		session.Ghost.OpponentScore = payload.OpponentScore
		session.Ghost.IsWinner = payload.IsWinner
		session.Ghost.IsDraw = payload.IsDraw
		if session.Ghost.TimerEnd == 0 {
			session.Ghost.TimerEnd = event.Timestamp
		}
		return true
	}
	return false
}
