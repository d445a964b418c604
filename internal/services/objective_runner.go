package services

import (
	"log"

	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

// settleEventName is the synthetic event used for the initial evaluation of
// a freshly registered machine, so unconditional transitions off the start
// state settle before any real event arrives.
const settleEventName = "-"

// ObjectiveRunner registers and re-evaluates one state machine per tracked
// mission objective.
type ObjectiveRunner struct {
	evaluate FsmEvaluate
}

// NewObjectiveRunner creates a runner over the given evaluator.
func NewObjectiveRunner(evaluate FsmEvaluate) *ObjectiveRunner {
	return &ObjectiveRunner{evaluate: evaluate}
}

// RegisterObjectiveListener starts tracking one objective on a session.
// Objectives without a definition are skipped. The machine is evaluated once
// with the synthetic settle event before any real event arrives.
func (r *ObjectiveRunner) RegisterObjectiveListener(session *models.ContractSession, objective *models.Objective) {
	if objective == nil || objective.Definition == nil {
		return
	}

	context := objective.Definition.Context
	if context == nil {
		context = map[string]any{}
	}
	state := InitialObjectiveState

	result, err := r.evaluate(objective.Definition.AsDefinition(), state, context, nil, statemachine.Options{
		EventName:    settleEventName,
		CurrentState: state,
		ContractID:   session.ContractID,
	})
	if err != nil {
		log.Printf("⚠️  [OBJECTIVES] Settle pass failed for objective %s: %v", objective.ID, err)
	} else if result.Context != nil {
		state = result.State
		context = result.Context
	}

	session.Objectives[objective.ID] = objective
	session.ObjectiveStates[objective.ID] = state
	session.ObjectiveContexts[objective.ID] = context
}

// HandleEvent re-evaluates every tracked objective against one event.
// State and context are updated together, and only when the evaluator
// returns a context: an absent context means "no change", and a state-only
// result is a no-op. A resulting Failure state is recorded in the session's
// failed set but is not terminal for the session. Evaluator panics and
// errors are isolated per objective so one broken machine cannot abort the
// batch.
func (r *ObjectiveRunner) HandleEvent(session *models.ContractSession, event *models.ClientEvent, eventValue any) {
	for id, objective := range session.Objectives {
		if objective.Definition == nil {
			continue
		}
		r.evaluateObjective(session, id, objective, event, eventValue)
	}
}

func (r *ObjectiveRunner) evaluateObjective(session *models.ContractSession, id string, objective *models.Objective, event *models.ClientEvent, eventValue any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ [OBJECTIVES] Evaluator panicked for objective %s on %s: %v", id, event.Name, rec)
		}
	}()

	state, ok := session.ObjectiveStates[id]
	if !ok {
		state = InitialObjectiveState
	}

	result, err := r.evaluate(objective.Definition.AsDefinition(), state, session.ObjectiveContexts[id], eventValue, statemachine.Options{
		EventName:    event.Name,
		CurrentState: state,
		Timestamp:    event.Timestamp,
		ContractID:   session.ContractID,
	})
	if err != nil {
		log.Printf("⚠️  [OBJECTIVES] Evaluation failed for objective %s on %s: %v", id, event.Name, err)
		return
	}

	if result.Context == nil {
		return
	}
	session.ObjectiveStates[id] = result.State
	session.ObjectiveContexts[id] = result.Context
	if result.State == "Failure" {
		session.FailedObjectives.Add(id)
	}
}
