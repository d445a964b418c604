package models

import (
	"encoding/json"
	"time"
)

// UserProfile is the persisted per-user, per-game-version blob. Access is
// read-modify-write with last-writer-wins semantics; it is not transactional.
type UserProfile struct {
	UserID      string `json:"userId"`
	GameVersion string `json:"gameVersion"`

	// EscalationProgress maps an escalation/arcade group id to the highest
	// unlocked level.
	EscalationProgress map[string]int `json:"escalationProgress"`

	// ContractProgression holds CPD blobs keyed by CpdId: the roguelite
	// ("evergreen") per-contract progression data.
	ContractProgression map[string]map[string]json.RawMessage `json:"contractProgression"`

	// PlayHistory records the last-played-at time per contract id, updated
	// for contest/featured contracts on failure finalization.
	PlayHistory map[string]time.Time `json:"playHistory"`

	// AreaDiscovery maps a discovery challenge id to the set of discovered
	// area repository ids.
	AreaDiscovery map[string]StringSet `json:"areaDiscovery"`
}

// NewUserProfile returns an empty profile for the given identity.
func NewUserProfile(userID, gameVersion string) *UserProfile {
	return &UserProfile{
		UserID:              userID,
		GameVersion:         gameVersion,
		EscalationProgress:  make(map[string]int),
		ContractProgression: make(map[string]map[string]json.RawMessage),
		PlayHistory:         make(map[string]time.Time),
		AreaDiscovery:       make(map[string]StringSet),
	}
}

// EnsureMaps backfills nil maps on profiles decoded from older blobs.
func (p *UserProfile) EnsureMaps() {
	if p.EscalationProgress == nil {
		p.EscalationProgress = make(map[string]int)
	}
	if p.ContractProgression == nil {
		p.ContractProgression = make(map[string]map[string]json.RawMessage)
	}
	if p.PlayHistory == nil {
		p.PlayHistory = make(map[string]time.Time)
	}
	if p.AreaDiscovery == nil {
		p.AreaDiscovery = make(map[string]StringSet)
	}
}

// SetCpdValue writes one key of a CPD blob.
func (p *UserProfile) SetCpdValue(cpdID, key string, value json.RawMessage) {
	blob, ok := p.ContractProgression[cpdID]
	if !ok {
		blob = make(map[string]json.RawMessage)
		p.ContractProgression[cpdID] = blob
	}
	blob[key] = value
}

// ResetEscalationGroup drops all progress for an escalation group.
func (p *UserProfile) ResetEscalationGroup(groupID string) {
	if groupID == "" {
		return
	}
	delete(p.EscalationProgress, groupID)
}
