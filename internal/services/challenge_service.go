package services

import (
	"log"
	"sync"

	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

// challengeProgress is the live state of one challenge on one session.
type challengeProgress struct {
	challenge *models.Challenge
	state     string
	context   map[string]any
	completed bool
}

// ChallengeService tracks challenge progress per session. Challenge packs
// are registered once at startup (keyed by contract type, with a global
// pack applying to every contract) and evaluated in-process against the
// same event stream as objectives. Completion is tracked in memory for the
// session; area-discovery progress is the one piece persisted per user.
type ChallengeService struct {
	mu       sync.RWMutex
	packs    map[string][]*models.Challenge
	progress map[string]map[string]*challengeProgress // sessionID → challengeID

	evaluate FsmEvaluate
	userdata *UserDataService
}

// GlobalPack is the pack key applied to every contract type.
const GlobalPack = "global"

// NewChallengeService creates the service. userdata may be nil in tests;
// area-discovery progress is then kept in-memory only.
func NewChallengeService(evaluate FsmEvaluate, userdata *UserDataService) *ChallengeService {
	return &ChallengeService{
		packs:    make(map[string][]*models.Challenge),
		progress: make(map[string]map[string]*challengeProgress),
		evaluate: evaluate,
		userdata: userdata,
	}
}

// RegisterPack installs a set of challenges for a contract type
// (or GlobalPack).
func (s *ChallengeService) RegisterPack(contractType string, challenges []*models.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packs[contractType] = append(s.packs[contractType], challenges...)
}

// StartContract seeds the session's challenge contexts, running the settle
// pass on each machine the same way objectives do.
func (s *ChallengeService) StartContract(session *models.ContractSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := make(map[string]*challengeProgress)
	for _, challenge := range s.packs[GlobalPack] {
		table[challenge.ID] = s.seed(session, challenge)
	}
	if session.ContractType != "" {
		for _, challenge := range s.packs[session.ContractType] {
			table[challenge.ID] = s.seed(session, challenge)
		}
	}
	s.progress[session.ID] = table
}

func (s *ChallengeService) seed(session *models.ContractSession, challenge *models.Challenge) *challengeProgress {
	p := &challengeProgress{
		challenge: challenge,
		state:     InitialObjectiveState,
		context:   map[string]any{},
	}
	if challenge.Definition == nil {
		return p
	}
	if challenge.Definition.Context != nil {
		p.context = deepCopyContext(challenge.Definition.Context)
	}
	result, err := s.evaluate(challenge.Definition.AsDefinition(), p.state, p.context, nil, statemachine.Options{
		EventName:    settleEventName,
		CurrentState: p.state,
		ContractID:   session.ContractID,
	})
	if err != nil {
		log.Printf("⚠️  [CHALLENGES] Settle pass failed for challenge %s: %v", challenge.ID, err)
		return p
	}
	if result.Context != nil {
		p.state = result.State
		p.context = result.Context
	}
	return p
}

// OnContractEvent re-evaluates every machine-driven challenge on the
// session against one event.
func (s *ChallengeService) OnContractEvent(session *models.ContractSession, event *models.ClientEvent, eventValue any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.progress[session.ID]
	if !ok {
		return
	}
	for _, p := range table {
		if p.completed || p.challenge.Definition == nil {
			continue
		}
		s.ChallengeOnEvent(session, p, event, eventValue)
	}
}

// ChallengeOnEvent evaluates one challenge machine against one event,
// applying the absent-context no-change sentinel and isolating evaluator
// panics.
func (s *ChallengeService) ChallengeOnEvent(session *models.ContractSession, p *challengeProgress, event *models.ClientEvent, eventValue any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ [CHALLENGES] Evaluator panicked for challenge %s on %s: %v", p.challenge.ID, event.Name, rec)
		}
	}()

	result, err := s.evaluate(p.challenge.Definition.AsDefinition(), p.state, p.context, eventValue, statemachine.Options{
		EventName:    event.Name,
		CurrentState: p.state,
		Timestamp:    event.Timestamp,
		ContractID:   session.ContractID,
	})
	if err != nil {
		log.Printf("⚠️  [CHALLENGES] Evaluation failed for challenge %s on %s: %v", p.challenge.ID, event.Name, err)
		return
	}
	if result.Context == nil {
		return
	}
	p.state = result.State
	p.context = result.Context
	if p.state == "Success" && !p.completed {
		p.completed = true
		log.Printf("🏆 [CHALLENGES] Challenge %s completed by user %s", p.challenge.ID, session.UserID)
	}
}

// DiscoverArea records an area toward every area-discovery challenge on the
// session and returns the ids of challenges that just reached their
// requirement.
func (s *ChallengeService) DiscoverArea(session *models.ContractSession, repositoryID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.progress[session.ID]
	if !ok {
		return nil
	}

	var completed []string
	for id, p := range table {
		if !p.challenge.IsAreaDiscovery() || p.completed {
			continue
		}
		count := 1
		if s.userdata != nil {
			count = s.userdata.RecordAreaDiscovered(session.UserID, session.GameVersion, id, repositoryID)
		}
		if count >= p.challenge.RequiredAreas {
			p.completed = true
			completed = append(completed, id)
			log.Printf("🏆 [CHALLENGES] Area-discovery challenge %s completed by user %s", id, session.UserID)
		}
	}
	return completed
}

// CompletedChallenges returns the ids of challenges completed on a session.
func (s *ChallengeService) CompletedChallenges(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, p := range s.progress[sessionID] {
		if p.completed {
			out = append(out, id)
		}
	}
	return out
}

func deepCopyContext(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = deepCopyContext(nested)
			continue
		}
		out[key] = value
	}
	return out
}
