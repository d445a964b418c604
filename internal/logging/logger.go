package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSession returns a logger with contract session fields attached.
// Use this for all logging tied to a single play-through attempt.
func WithSession(sessionID, contractID, userID string) *slog.Logger {
	return slog.With(
		"session_id", sessionID,
		"contract_id", contractID,
		"user_id", userID,
	)
}

// WithObjective returns a logger scoped to one tracked objective within a session.
func WithObjective(logger *slog.Logger, objectiveID, state string) *slog.Logger {
	return logger.With(
		"objective_id", objectiveID,
		"state", state,
	)
}
