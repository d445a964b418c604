package services

import (
	"encoding/json"
	"log"

	"masquerade/internal/models"
)

// lateEventAllowList names the events that are still applied after the
// session timer has ended. Everything else arriving past timerEnd is
// acknowledged and dropped.
var lateEventAllowList = map[string]struct{}{
	models.EventContractEnd:        {},
	models.EventObjectiveCompleted: {},
	models.EventCpdSet:             {},
	models.EventMissionFailed:      {},
}

// SessionEventHook is a pluggable pre-dispatch extension. Claim reports
// whether the hook consumed the event, in which case the built-in dispatch
// table is skipped for it.
type SessionEventHook interface {
	Claim(session *models.ContractSession, event *models.ClientEvent) bool
}

// EventPipeline validates, routes, and applies every incoming client event
// against session state and the objective/scoring runners. It is the only
// writer of session state after creation; all per-session mutation happens
// under the registry's per-session lock, which is never held across
// blocking I/O (the autosplitter and presence collaborators are
// fire-and-forget from their own goroutines).
type EventPipeline struct {
	registry   *SessionRegistry
	objectives *ObjectiveRunner
	scoring    *ScoringRunner
	challenges *ChallengeService
	userdata   *UserDataService
	finisher   *FailureFinisher
	ticks      *TickSource
	metrics    *EngineMetrics

	hooks []SessionEventHook
}

// NewEventPipeline creates the pipeline. userdata, finisher, and metrics may
// be nil in tests.
func NewEventPipeline(registry *SessionRegistry, objectives *ObjectiveRunner, scoring *ScoringRunner, challenges *ChallengeService, userdata *UserDataService, finisher *FailureFinisher, ticks *TickSource, metrics *EngineMetrics) *EventPipeline {
	return &EventPipeline{
		registry:   registry,
		objectives: objectives,
		scoring:    scoring,
		challenges: challenges,
		userdata:   userdata,
		finisher:   finisher,
		ticks:      ticks,
		metrics:    metrics,
	}
}

// AddHook installs a pre-dispatch extension (ghost mode, tooling).
func (p *EventPipeline) AddHook(hook SessionEventHook) {
	p.hooks = append(p.hooks, hook)
}

// SaveEvents processes a batch strictly in array order. Every event yields
// exactly one strictly increasing token, in input order, regardless of
// whether it mutated anything — clients use the token as both an ack and a
// sync cursor. Submitting the same ordered events in one call or split
// across several must produce identical final session state.
func (p *EventPipeline) SaveEvents(userID string, events []models.ClientEvent, gameVersion string) []string {
	tokens := make([]string, 0, len(events))
	for i := range events {
		p.processEvent(userID, &events[i], gameVersion)
		tokens = append(tokens, p.ticks.Token())
	}
	return tokens
}

func (p *EventPipeline) processEvent(userID string, event *models.ClientEvent, gameVersion string) {
	if p.metrics != nil {
		p.metrics.ObserveEvent(event.Name)
	}

	session := p.registry.GetSessionByID(event.ContractSessionID)
	if session == nil {
		session = p.registry.SynthesizeSession(event.ContractSessionID, event.ContractID, userID, gameVersion)
	}

	// Stale or cross-session references are tolerated, never applied.
	if session.UserID != userID {
		log.Printf("⚠️  [EVENTS] Skipping %s: session %s belongs to another user", event.Name, session.ID)
		return
	}
	if event.ContractID != "" && session.ContractID != event.ContractID {
		log.Printf("⚠️  [EVENTS] Skipping %s: session %s is for contract %s, event names %s", event.Name, session.ID, session.ContractID, event.ContractID)
		return
	}

	lock := p.registry.Lock(session.ID)
	lock.Lock()
	defer lock.Unlock()

	session.Duration = event.Timestamp
	session.LastUpdate = nowFunc()

	// Evergreen scoring-screen terminators are recorded and acknowledged;
	// nothing else runs for them, including the state machines.
	if state, ok := event.IsScoringScreenEndState(); ok {
		if session.Evergreen != nil {
			session.Evergreen.ScoringScreenEndState = state
		}
		return
	}

	// Once the session timer has ended, only the allow-listed closing
	// events still apply; anything else is acknowledged and dropped so a
	// finished run cannot be mutated by stragglers.
	if session.TimerEnd != 0 && event.Timestamp > session.TimerEnd {
		if _, ok := lateEventAllowList[event.Name]; !ok {
			return
		}
	}

	var eventValue any
	if len(event.Value) > 0 {
		if err := json.Unmarshal(event.Value, &eventValue); err != nil {
			log.Printf("⚠️  [EVENTS] Undecodable value on %s for session %s: %v", event.Name, session.ID, err)
		}
	}

	p.objectives.HandleEvent(session, event, eventValue)
	p.scoring.HandleEvent(session, event, eventValue)
	p.challenges.OnContractEvent(session, event, eventValue)

	for _, hook := range p.hooks {
		if hook.Claim(session, event) {
			return
		}
	}

	p.dispatch(session, event, gameVersion)
}

// dispatch is the name-keyed table of built-in session mutations. Unknown
// names fall through as a no-op: clients emit far more telemetry than the
// server tracks.
func (p *EventPipeline) dispatch(session *models.ContractSession, event *models.ClientEvent, gameVersion string) {
	switch event.Name {
	case models.EventKill:
		p.handleKill(session, event, gameVersion)

	case models.EventCrowdNpcDied:
		session.CrowdNpcKills++

	case models.EventPacify:
		var payload models.PacifyPayload
		if event.DecodeValue(&payload) == nil {
			session.Pacifications.Add(payload.RepositoryID)
		}

	case models.EventBodyHidden:
		var payload models.PacifyPayload
		if event.DecodeValue(&payload) == nil {
			session.BodiesHidden.Add(payload.RepositoryID)
		}

	case models.EventDisguise:
		disguise := event.ValueString()
		if disguise != "" {
			session.CurrentDisguise = disguise
			session.DisguisesUsed.Add(disguise)
		}

	case models.EventDisguiseBlown:
		session.DisguisesRuined.Add(event.ValueString())

	case models.EventBrokenDisguiseCleared:
		session.DisguisesRuined.Remove(event.ValueString())

	case models.EventSpotted:
		for _, actor := range decodeStringList(event.Value) {
			session.SpottedBy.Add(actor)
		}

	case models.EventWitnesses:
		for _, actor := range decodeStringList(event.Value) {
			session.Witnesses.Add(actor)
		}

	case models.EventSecurityRecorder:
		p.handleRecorder(session, event)

	case models.EventIntroCutEnd:
		if session.TimerStart == 0 {
			session.TimerStart = event.Timestamp
		}

	case models.EventExitGate, models.EventContractEnd:
		if session.TimerEnd == 0 {
			session.TimerEnd = event.Timestamp
		}

	case models.EventObjectiveCompleted:
		var payload models.ObjectivePayload
		if event.DecodeValue(&payload) == nil {
			session.CompletedObjectives.Add(payload.ID)
		}

	case models.EventAccidentBodyFound:
		var payload models.BodySeenPayload
		if event.DecodeValue(&payload) == nil {
			session.BodiesFoundBy.Add(payload.Witness)
		}

	case models.EventDeadBodySeen:
		var payload models.BodySeenPayload
		if event.DecodeValue(&payload) == nil {
			session.BodiesFoundBy.Add(payload.Witness)
		}

	case models.EventMurderedBodySeen:
		p.handleMurderedBodySeen(session, event)

	case models.EventAddSyndicateTarget:
		var payload models.ActorTagPayload
		if event.DecodeValue(&payload) == nil {
			session.MarkedTargets.Add(payload.RepositoryID)
		}

	case models.EventRemoveSyndicateTarget:
		var payload models.ActorTagPayload
		if event.DecodeValue(&payload) == nil {
			session.MarkedTargets.Remove(payload.RepositoryID)
		}

	case models.EventEvergreenPayout:
		var payload models.EvergreenPayoutPayload
		if session.Evergreen != nil && event.DecodeValue(&payload) == nil {
			session.Evergreen.Payout = payload.TotalPayout
		}

	case models.EventMissionFailed:
		if session.Evergreen != nil {
			session.Evergreen.Failed = true
		}

	case models.EventAreaDiscovered:
		var payload models.AreaPayload
		if event.DecodeValue(&payload) == nil {
			p.challenges.DiscoverArea(session, payload.RepositoryID)
		}

	case models.EventCpdSet:
		p.handleCpdSet(session, event, gameVersion)

	case models.EventContractFailed:
		if p.finisher != nil {
			p.finisher.ContractFailed(event, session)
		}
	}
}

// handleKill records the scoring-relevant kill. A kill whose actor is not
// the player character, or (H1 builds only) an accident kill, can never
// become a noticed kill later; that is carried on the record itself.
func (p *EventPipeline) handleKill(session *models.ContractSession, event *models.ClientEvent, gameVersion string) {
	var payload models.KillPayload
	if err := event.DecodeValue(&payload); err != nil {
		log.Printf("⚠️  [EVENTS] Undecodable Kill payload for session %s: %v", session.ID, err)
		return
	}

	unnoticed := payload.KillContext == models.DeathContextNotHero ||
		(gameVersion == "h1" && payload.Accident)

	session.LastKill = models.KillRecord{
		Timestamp:         event.Timestamp,
		RepositoryIDs:     []string{payload.RepositoryID},
		LegacyIsUnnoticed: unnoticed,
	}
	if session.FirstKillTimestamp == 0 {
		session.FirstKillTimestamp = event.Timestamp
	}
	if payload.Accident {
		session.LastAccident = event.Timestamp
	}

	if payload.IsTarget {
		session.TargetKills.Add(payload.RepositoryID)
	} else {
		session.NpcKills.Add(payload.RepositoryID)
	}
}

// handleRecorder applies the camera status transition. Erased is a terminal
// floor: a later "spotted" cannot downgrade it.
func (p *EventPipeline) handleRecorder(session *models.ContractSession, event *models.ClientEvent) {
	var payload models.RecorderPayload
	if event.DecodeValue(&payload) != nil {
		return
	}
	switch payload.Event {
	case "spotted":
		if session.Recording != models.CameraErased {
			session.Recording = models.CameraSpotted
		}
	case "destroyed", "erased":
		session.Recording = models.CameraErased
	}
}

// handleMurderedBodySeen flips silentAssassinLost unless the discovery is
// of the kill that just happened (same mission-clock instant) — then the
// witness merely noticed the kill — or the kill could never be noticed.
func (p *EventPipeline) handleMurderedBodySeen(session *models.ContractSession, event *models.ClientEvent) {
	var payload models.BodySeenPayload
	if event.DecodeValue(&payload) != nil {
		return
	}
	session.BodiesFoundBy.Add(payload.Witness)

	if session.LastKill.LegacyIsUnnoticed {
		return
	}
	if event.Timestamp == session.LastKill.Timestamp {
		session.KillsNoticedBy.Add(payload.Witness)
		return
	}
	session.SilentAssassinLost = true
}

// handleCpdSet persists one contract-progression key. The contract must opt
// in via its manifest; the event's own CpdId wins when present.
func (p *EventPipeline) handleCpdSet(session *models.ContractSession, event *models.ClientEvent, gameVersion string) {
	if p.userdata == nil {
		return
	}
	var payload models.CpdPayload
	if err := event.DecodeValue(&payload); err != nil || payload.Key == "" {
		return
	}

	cpdID := payload.CpdID
	if cpdID == "" {
		manifest := p.registry.Resolver().Resolve(session.ContractID, gameVersion)
		if manifest == nil || !manifest.Metadata.UseContractProgressionData {
			return
		}
		cpdID = manifest.Metadata.CpdID
	}
	if cpdID == "" {
		return
	}
	p.userdata.SetCpdValue(session.UserID, gameVersion, cpdID, payload.Key, payload.Value)
}

// decodeStringList tolerates both a JSON array of ids and a single bare id.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
