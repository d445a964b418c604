package services

import (
	"log"

	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

// ScoringRunner merges a contract's scoring module definitions into one
// state machine per session and re-evaluates it.
type ScoringRunner struct {
	evaluate FsmEvaluate
}

// NewScoringRunner creates a runner over the given evaluator.
func NewScoringRunner(evaluate FsmEvaluate) *ScoringRunner {
	return &ScoringRunner{evaluate: evaluate}
}

// SetupScoring builds the session's scoring state. Exactly one module
// (discriminated by its Type suffix) supplies the scoring definition: its
// ScoringDefinitions are deep-merged in declaration order, later fields
// overriding earlier ones on key conflict. Every other module becomes a
// named settings entry keyed by its type name, discriminator stripped.
func (r *ScoringRunner) SetupScoring(session *models.ContractSession, modules []models.ScoringModule) {
	var scoringModule *models.ScoringModule
	settings := make(map[string]map[string]any)

	for i := range modules {
		module := &modules[i]
		if module.IsScoring() && scoringModule == nil {
			scoringModule = module
			continue
		}
		raw := make(map[string]any, len(module.Raw()))
		for key, value := range module.Raw() {
			if key == "Type" {
				continue
			}
			raw[key] = value
		}
		settings[module.SettingsKey()] = raw
	}

	if scoringModule == nil {
		return
	}

	definition := make(map[string]any)
	for _, part := range scoringModule.ScoringDefinitions {
		definition = mergeDefinitions(definition, part)
	}

	context, _ := definition["Context"].(map[string]any)
	if context == nil {
		context = map[string]any{}
	}
	state := InitialObjectiveState
	timers := []models.Timer{}

	result, err := r.evaluate(definition, state, context, nil, statemachine.Options{
		EventName:    settleEventName,
		CurrentState: state,
		ContractID:   session.ContractID,
		Timers:       &timers,
	})
	if err != nil {
		log.Printf("⚠️  [SCORING] Settle pass failed for contract %s: %v", session.ContractID, err)
	} else if result.Context != nil {
		state = result.State
		context = result.Context
	}

	session.Scoring = &models.SessionScoring{
		Definition: definition,
		Context:    context,
		State:      state,
		Timers:     timers,
		Settings:   settings,
	}
}

// HandleEvent re-evaluates the session's scoring machine against one event,
// threading the shared timers slice so time-based transitions can span
// events. The absent-context sentinel is honored the same way as for
// objectives.
func (r *ScoringRunner) HandleEvent(session *models.ContractSession, event *models.ClientEvent, eventValue any) {
	scoring := session.Scoring
	if scoring == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ [SCORING] Evaluator panicked on %s: %v", event.Name, rec)
		}
	}()

	result, err := r.evaluate(scoring.Definition, scoring.State, scoring.Context, eventValue, statemachine.Options{
		EventName:    event.Name,
		CurrentState: scoring.State,
		Timestamp:    event.Timestamp,
		ContractID:   session.ContractID,
		Timers:       &scoring.Timers,
	})
	if err != nil {
		log.Printf("⚠️  [SCORING] Evaluation failed on %s: %v", event.Name, err)
		return
	}

	if result.Context == nil {
		return
	}
	scoring.State = result.State
	scoring.Context = result.Context
}

// mergeDefinitions deep-merges b into a copy of a; map values merge
// recursively, anything else is replaced by the later value.
func mergeDefinitions(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for key, value := range a {
		out[key] = value
	}
	for key, value := range b {
		existing, haveExisting := out[key].(map[string]any)
		incoming, isMap := value.(map[string]any)
		if haveExisting && isMap {
			out[key] = mergeDefinitions(existing, incoming)
			continue
		}
		out[key] = value
	}
	return out
}
