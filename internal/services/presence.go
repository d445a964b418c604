package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceChannel = "masquerade:presence"
	presenceKeyTTL  = 10 * time.Minute
)

// PresenceService publishes "now playing" status over Redis pub/sub for
// external presence integrations. Entirely optional: with no Redis
// configured every call is a no-op, and publish failures are logged, never
// propagated.
type PresenceService struct {
	client *redis.Client
}

// NewPresenceService connects to Redis if a URL is configured. Connection
// failure disables presence rather than failing startup.
func NewPresenceService(redisURL string) *PresenceService {
	s := &PresenceService{}
	if redisURL == "" {
		log.Printf("ℹ️  [PRESENCE] No Redis URL configured, presence disabled")
		return s
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("⚠️  [PRESENCE] Invalid Redis URL, presence disabled: %v", err)
		return s
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  [PRESENCE] Redis unreachable, presence disabled: %v", err)
		_ = client.Close()
		return s
	}

	log.Printf("✅ [PRESENCE] Connected to Redis")
	s.client = client
	return s
}

// locationStatus is the published presence payload.
type locationStatus struct {
	UserID     string    `json:"userId"`
	ContractID string    `json:"contractId"`
	ScenePath  string    `json:"scenePath"`
	StartedAt  time.Time `json:"startedAt"`
}

// SwapToLocationStatus announces that a user started playing a location.
// Fire-and-forget.
func (s *PresenceService) SwapToLocationStatus(userID, contractID, scenePath string) {
	if s.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		payload, err := json.Marshal(locationStatus{
			UserID:     userID,
			ContractID: contractID,
			ScenePath:  scenePath,
			StartedAt:  time.Now().UTC(),
		})
		if err != nil {
			return
		}
		if err := s.client.Publish(ctx, presenceChannel, payload).Err(); err != nil {
			log.Printf("⚠️  [PRESENCE] Publish failed: %v", err)
			return
		}
		if err := s.client.Set(ctx, presenceChannel+":"+userID, payload, presenceKeyTTL).Err(); err != nil {
			log.Printf("⚠️  [PRESENCE] Status set failed: %v", err)
		}
	}()
}

// Close releases the Redis connection.
func (s *PresenceService) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}
