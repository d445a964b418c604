package models

import (
	"encoding/json"
	"sort"
	"time"
)

// CameraStatus tracks the state of the level's security recorder.
// Erased is a terminal floor: once a recorder is destroyed or erased,
// a later "spotted" event cannot downgrade it back to Spotted.
type CameraStatus string

const (
	CameraNotSpotted CameraStatus = "NOT_SPOTTED"
	CameraSpotted    CameraStatus = "SPOTTED"
	CameraErased     CameraStatus = "ERASED"
)

// StringSet is a set of actor/repository ids with stable JSON output.
type StringSet map[string]struct{}

// NewStringSet creates an empty set.
func NewStringSet() StringSet {
	return make(StringSet)
}

// Add inserts an id. Empty ids are ignored.
func (s StringSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Has reports membership.
func (s StringSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Remove deletes an id if present.
func (s StringSet) Remove(id string) {
	delete(s, id)
}

// Len returns the number of members.
func (s StringSet) Len() int {
	return len(s)
}

// Values returns the members sorted for deterministic output.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear removes all members in place.
func (s StringSet) Clear() {
	for id := range s {
		delete(s, id)
	}
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes an array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	set := NewStringSet()
	for _, v := range values {
		set.Add(v)
	}
	*s = set
	return nil
}

// KillRecord captures the most recent scoring-relevant kill.
type KillRecord struct {
	Timestamp         float64  `json:"timestamp"`
	RepositoryIDs     []string `json:"repositoryIds"`
	LegacyIsUnnoticed bool     `json:"legacyIsUnnoticed"`
}

// SessionScoring is the merged scoring state machine for a session.
// Present only when the contract declared scoring modules.
type SessionScoring struct {
	Definition map[string]any            `json:"definition"`
	Context    map[string]any            `json:"context"`
	State      string                    `json:"state"`
	Timers     []Timer                   `json:"timers"`
	Settings   map[string]map[string]any `json:"settings"`
}

// Timer is a pending time-based transition shared across scoring evaluations.
type Timer struct {
	Path    string  `json:"path"`
	EndTime float64 `json:"endTime"`
}

// GhostState is the head-to-head versus sub-state of a session.
type GhostState struct {
	Deaths         int      `json:"deaths"`
	UnnoticedKills int      `json:"unnoticedKills"`
	Opponents      []string `json:"Opponents"`
	Score          int      `json:"Score"`
	OpponentScore  int      `json:"OpponentScore"`
	IsWinner       bool     `json:"IsWinner"`
	IsDraw         bool     `json:"IsDraw"`
	TimerEnd       float64  `json:"timerEnd"`
}

// EvergreenState is the roguelite sub-state of a session.
type EvergreenState struct {
	Payout               float64 `json:"payout"`
	Failed               bool    `json:"failed"`
	ScoringScreenEndState string `json:"scoringScreenEndState"`
}

// ContractSession is the mutable record of one play-through attempt.
// It is created by the session registry (explicitly, or synthesized by the
// ingestion pipeline when an event references an unknown session) and mutated
// exclusively by event processing. Sessions live for the process lifetime;
// there is no eviction.
type ContractSession struct {
	ID          string `json:"Id"`
	UserID      string `json:"userId"`
	ContractID  string `json:"contractId"`
	GameVersion string `json:"gameVersion"`
	Difficulty  int    `json:"difficulty"`

	// ContractType and ContractGroup mirror the resolved manifest metadata.
	// Empty on synthesized sessions whose contract could not be resolved.
	ContractType  string `json:"contractType,omitempty"`
	ContractGroup string `json:"contractGroup,omitempty"`

	SessionStart time.Time `json:"sessionStart"`
	LastUpdate   time.Time `json:"lastUpdate"`
	// TimerStart and TimerEnd are first-write-wins: set once, never overwritten.
	TimerStart float64 `json:"timerStart"`
	TimerEnd   float64 `json:"timerEnd"`
	Duration   float64 `json:"duration"`

	TargetKills         StringSet `json:"targetKills"`
	NpcKills            StringSet `json:"npcKills"`
	BodiesHidden        StringSet `json:"bodiesHidden"`
	Pacifications       StringSet `json:"pacifications"`
	DisguisesUsed       StringSet `json:"disguisesUsed"`
	DisguisesRuined     StringSet `json:"disguisesRuined"`
	SpottedBy           StringSet `json:"spottedBy"`
	Witnesses           StringSet `json:"witnesses"`
	BodiesFoundBy       StringSet `json:"bodiesFoundBy"`
	KillsNoticedBy      StringSet `json:"killsNoticedBy"`
	CompletedObjectives StringSet `json:"completedObjectives"`
	FailedObjectives    StringSet `json:"failedObjectives"`
	MarkedTargets       StringSet `json:"markedTargets"`

	CrowdNpcKills      int          `json:"crowdNpcKills"`
	CurrentDisguise    string       `json:"currentDisguise"`
	Recording          CameraStatus `json:"recording"`
	SilentAssassinLost bool         `json:"silentAssassinLost"`
	LastAccident       float64      `json:"lastAccident"`
	LastKill           KillRecord   `json:"lastKill"`
	FirstKillTimestamp float64      `json:"firstKillTimestamp"`

	// ObjectiveContexts and ObjectiveStates are always keyed by a subset of
	// Objectives' keys.
	Objectives        map[string]*Objective     `json:"objectives"`
	ObjectiveContexts map[string]map[string]any `json:"objectiveContexts"`
	ObjectiveStates   map[string]string         `json:"objectiveStates"`

	Scoring   *SessionScoring `json:"scoring,omitempty"`
	Ghost     GhostState      `json:"ghost"`
	Evergreen *EvergreenState `json:"evergreen,omitempty"`

	// Scored is false for a synthesized fallback session, which is never
	// eligible for leaderboards.
	Scored bool `json:"scored"`
}

// HasCompletedPrimaryObjective reports whether at least one primary objective
// is in the completed set. Used by the arcade escalation preserve rule.
func (s *ContractSession) HasCompletedPrimaryObjective() bool {
	for id, obj := range s.Objectives {
		if obj != nil && obj.IsPrimary() && s.CompletedObjectives.Has(id) {
			return true
		}
	}
	return false
}
