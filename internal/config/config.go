package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port         string
	Environment  string
	ContractsDir string // Directory of contract manifest JSON files
	DatabasePath string // SQLite file for persisted user profiles
	RedisURL     string // Optional: presence/telemetry publishing

	// Sync protocol tuning; advisory only, the client decides when to poll
	NextPollSeconds float64

	// Default difficulty coerced onto user-created contracts started without one
	DefaultDifficulty int

	// LiveSplit autosplitter integration (fire-and-forget TCP)
	LiveSplitEnabled bool
	LiveSplitAddr    string
	LiveSplitTimeout time.Duration

	// JWT secret for the local auth middleware; empty disables auth
	// (development only)
	JWTSecret string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3002"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		ContractsDir: getEnv("CONTRACTS_DIR", "./contracts"),
		DatabasePath: getEnv("DATABASE_PATH", "./userdata.db"),
		RedisURL:     getEnv("REDIS_URL", ""),

		NextPollSeconds: 10.0,

		DefaultDifficulty: getIntEnv("DEFAULT_DIFFICULTY", 2),

		LiveSplitEnabled: getBoolEnv("LIVESPLIT_ENABLED", false),
		LiveSplitAddr:    getEnv("LIVESPLIT_ADDR", "127.0.0.1:16834"),
		LiveSplitTimeout: time.Duration(getIntEnv("LIVESPLIT_TIMEOUT_MS", 500)) * time.Millisecond,

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
