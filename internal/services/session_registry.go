package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"masquerade/internal/contracts"
	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

// DefaultDisguiseID is the repository id of the starting suit, used as the
// current disguise until the client reports a change.
const DefaultDisguiseID = "4fc9396e-2619-4e66-a51e-2bd366230da7"

// InitialObjectiveState is the state every tracked objective starts in, and
// the synthetic state reported for unknown sessions: callers must treat
// "no session" as "fresh state machine", never as an error.
const InitialObjectiveState = "Start"

// FsmEvaluate is the external state machine evaluator contract: a pure
// function over (definition, state, context, event) with no I/O. Absent
// fields in the result mean "unchanged".
type FsmEvaluate func(definition map[string]any, state string, context map[string]any, eventValue any, opts statemachine.Options) (statemachine.Result, error)

// SessionRegistry owns the table of active contract sessions, the per-user
// pointer to the current session, and the per-session locks that serialize
// event processing. It is constructed once and injected, never held as
// ambient state. Sessions are retained for the process lifetime; there is no
// eviction (a documented resource-growth risk, surfaced via metrics).
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*models.ContractSession
	current  map[string]string      // userID → current session id (last-started-wins)
	locks    map[string]*sync.Mutex // sessionID → per-session lock

	resolver   *contracts.Resolver
	challenges *ChallengeService
	objectives *ObjectiveRunner
	scoring    *ScoringRunner

	defaultDifficulty int
}

// NewSessionRegistry creates the registry.
func NewSessionRegistry(resolver *contracts.Resolver, challenges *ChallengeService, objectives *ObjectiveRunner, scoring *ScoringRunner, defaultDifficulty int) *SessionRegistry {
	return &SessionRegistry{
		sessions:          make(map[string]*models.ContractSession),
		current:           make(map[string]string),
		locks:             make(map[string]*sync.Mutex),
		resolver:          resolver,
		challenges:        challenges,
		objectives:        objectives,
		scoring:           scoring,
		defaultDifficulty: defaultDifficulty,
	}
}

// NewSession starts a session for an explicit contract start. An
// unresolvable contract is a config/data-integrity bug, not a runtime
// condition: it fails fatally. doScoring=false creates an unscored session
// (no leaderboard eligibility).
func (r *SessionRegistry) NewSession(sessionID, contractID, userID string, difficulty int, gameVersion string, doScoring bool) *models.ContractSession {
	manifest := r.resolver.Resolve(contractID, gameVersion)
	if manifest == nil {
		log.Fatalf("❌ [SESSIONS] Cannot resolve contract %s (%s) at session start — contract data is broken", contractID, gameVersion)
	}

	// User-created contracts can be started without a difficulty; coerce to
	// the configured default so scoring settings always have one.
	if difficulty == 0 && manifest.Metadata.Type == "usercreated" {
		difficulty = r.defaultDifficulty
	}

	session := newBlankSession(sessionID, contractID, userID, difficulty, gameVersion)
	session.Scored = doScoring
	session.ContractType = manifest.Metadata.Type
	session.ContractGroup = manifest.Metadata.InGroup

	if manifest.Metadata.Type == "evergreen" {
		session.Evergreen = &models.EvergreenState{}
	}

	for _, objective := range manifest.Data.Objectives {
		r.objectives.RegisterObjectiveListener(session, objective)
	}
	if doScoring && len(manifest.Metadata.Modules) > 0 {
		r.scoring.SetupScoring(session, manifest.Metadata.Modules)
	}

	r.challenges.StartContract(session)
	r.Register(session)

	log.Printf("✅ [SESSIONS] Session %s started: contract=%s user=%s difficulty=%d", sessionID, contractID, userID, difficulty)
	return session
}

// SynthesizeSession creates an unscored fallback session for an event that
// references an unknown session, so the client is never blocked on a stale
// reference. Unlike NewSession, an unresolvable contract is tolerated here:
// the session simply tracks no objectives. Scored stays false either way —
// synthesized sessions are never leaderboard-eligible.
func (r *SessionRegistry) SynthesizeSession(sessionID, contractID, userID, gameVersion string) *models.ContractSession {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session := newBlankSession(sessionID, contractID, userID, r.defaultDifficulty, gameVersion)
	session.Scored = false

	if manifest := r.resolver.Resolve(contractID, gameVersion); manifest != nil {
		session.ContractType = manifest.Metadata.Type
		session.ContractGroup = manifest.Metadata.InGroup
		if manifest.Metadata.Type == "evergreen" {
			session.Evergreen = &models.EvergreenState{}
		}
		for _, objective := range manifest.Data.Objectives {
			r.objectives.RegisterObjectiveListener(session, objective)
		}
	}

	r.challenges.StartContract(session)
	r.Register(session)

	log.Printf("⚠️  [SESSIONS] Synthesized unscored session %s: contract=%s user=%s", sessionID, contractID, userID)
	return session
}

// Register adds a session and makes it the user's current one
// (last-started-wins). Also used for sessions synthesized by the ingestion
// pipeline.
func (r *SessionRegistry) Register(session *models.ContractSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	r.current[session.UserID] = session.ID
	if _, ok := r.locks[session.ID]; !ok {
		r.locks[session.ID] = &sync.Mutex{}
	}
}

// GetSession returns the user's current session, or nil.
func (r *SessionRegistry) GetSession(userID string) *models.ContractSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.current[userID]
	if !ok {
		return nil
	}
	return r.sessions[id]
}

// GetSessionByID returns a session by id, or nil.
func (r *SessionRegistry) GetSessionByID(sessionID string) *models.ContractSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// GetCurrentState returns the stored state of one objective. Unknown
// sessions and untracked objectives report the initial state rather than an
// error.
func (r *SessionRegistry) GetCurrentState(sessionID, objectiveID string) string {
	r.mu.RLock()
	session := r.sessions[sessionID]
	r.mu.RUnlock()
	if session == nil {
		return InitialObjectiveState
	}
	if state, ok := session.ObjectiveStates[objectiveID]; ok {
		return state
	}
	return InitialObjectiveState
}

// Lock returns the per-session mutex, creating it for sessions registered
// out-of-band. All mutations of one session's state must hold this lock; the
// lock must never be held across blocking collaborator I/O.
func (r *SessionRegistry) Lock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	return lock
}

// Count returns the number of registered sessions (metrics).
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Resolver exposes the contract resolver to collaborating services.
func (r *SessionRegistry) Resolver() *contracts.Resolver {
	return r.resolver
}

// newBlankSession initializes every aggregate empty and the ghost sub-state
// zeroed.
func newBlankSession(sessionID, contractID, userID string, difficulty int, gameVersion string) *models.ContractSession {
	now := time.Now()
	return &models.ContractSession{
		ID:          sessionID,
		UserID:      userID,
		ContractID:  contractID,
		GameVersion: gameVersion,
		Difficulty:  difficulty,

		SessionStart: now,
		LastUpdate:   now,

		TargetKills:         models.NewStringSet(),
		NpcKills:            models.NewStringSet(),
		BodiesHidden:        models.NewStringSet(),
		Pacifications:       models.NewStringSet(),
		DisguisesUsed:       models.NewStringSet(),
		DisguisesRuined:     models.NewStringSet(),
		SpottedBy:           models.NewStringSet(),
		Witnesses:           models.NewStringSet(),
		BodiesFoundBy:       models.NewStringSet(),
		KillsNoticedBy:      models.NewStringSet(),
		CompletedObjectives: models.NewStringSet(),
		FailedObjectives:    models.NewStringSet(),
		MarkedTargets:       models.NewStringSet(),

		CurrentDisguise: DefaultDisguiseID,
		Recording:       models.CameraNotSpotted,

		Objectives:        make(map[string]*models.Objective),
		ObjectiveContexts: make(map[string]map[string]any),
		ObjectiveStates:   make(map[string]string),

		Scored: true,
	}
}
