package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"masquerade/internal/database"
	"masquerade/internal/models"
)

// UserDataService persists per-user, per-game-version profile blobs. Access
// is read-modify-write with last-writer-wins semantics; it is not
// transactional across callers, so the internal mutex only keeps a single
// process's updates from torn interleaving.
type UserDataService struct {
	db *database.DB
	mu sync.Mutex
}

// NewUserDataService creates the store.
func NewUserDataService(db *database.DB) *UserDataService {
	return &UserDataService{db: db}
}

// Get loads a profile, returning an empty one for unknown users.
func (s *UserDataService) Get(userID, gameVersion string) (*models.UserProfile, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT data FROM user_profiles WHERE user_id = ? AND game_version = ?`,
		userID, gameVersion,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return models.NewUserProfile(userID, gameVersion), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	profile.UserID = userID
	profile.GameVersion = gameVersion
	profile.EnsureMaps()
	return &profile, nil
}

// Write stores a profile, replacing any previous blob (last-writer-wins).
func (s *UserDataService) Write(profile *models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO user_profiles (user_id, game_version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, game_version) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, profile.UserID, profile.GameVersion, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// update runs one read-modify-write cycle under the store mutex.
func (s *UserDataService) update(userID, gameVersion string, mutate func(profile *models.UserProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, err := s.Get(userID, gameVersion)
	if err != nil {
		return err
	}
	mutate(profile)
	return s.Write(profile)
}

// SetCpdValue persists one key of a contract-progression blob.
func (s *UserDataService) SetCpdValue(userID, gameVersion, cpdID, key string, value json.RawMessage) {
	err := s.update(userID, gameVersion, func(profile *models.UserProfile) {
		profile.SetCpdValue(cpdID, key, value)
	})
	if err != nil {
		log.Printf("⚠️  [USERDATA] Failed to persist CPD %s/%s for user %s: %v", cpdID, key, userID, err)
	}
}

// TouchPlayHistory records when a contract was last played.
func (s *UserDataService) TouchPlayHistory(userID, gameVersion, contractID string, playedAt time.Time) {
	err := s.update(userID, gameVersion, func(profile *models.UserProfile) {
		profile.PlayHistory[contractID] = playedAt.UTC()
	})
	if err != nil {
		log.Printf("⚠️  [USERDATA] Failed to update play history for user %s: %v", userID, err)
	}
}

// ResetEscalationGroup wipes all progress for an escalation/arcade group.
func (s *UserDataService) ResetEscalationGroup(userID, gameVersion, groupID string) {
	err := s.update(userID, gameVersion, func(profile *models.UserProfile) {
		profile.ResetEscalationGroup(groupID)
	})
	if err != nil {
		log.Printf("⚠️  [USERDATA] Failed to reset escalation group %s for user %s: %v", groupID, userID, err)
	}
}

// RecordAreaDiscovered adds an area to a discovery challenge's progress and
// returns the new count.
func (s *UserDataService) RecordAreaDiscovered(userID, gameVersion, challengeID, repositoryID string) int {
	count := 0
	err := s.update(userID, gameVersion, func(profile *models.UserProfile) {
		areas, ok := profile.AreaDiscovery[challengeID]
		if !ok {
			areas = models.NewStringSet()
			profile.AreaDiscovery[challengeID] = areas
		}
		areas.Add(repositoryID)
		count = areas.Len()
	})
	if err != nil {
		log.Printf("⚠️  [USERDATA] Failed to record area discovery for user %s: %v", userID, err)
	}
	return count
}
