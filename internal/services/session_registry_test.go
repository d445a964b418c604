package services

import (
	"testing"
)

func TestNewSessionLastStartedWins(t *testing.T) {
	engine := newTestEngine(t)

	engine.registry.NewSession("S1", "C1", "U1", 2, "h3", true)
	engine.registry.NewSession("S2", "C1", "U1", 2, "h3", true)

	session := engine.registry.GetSession("U1")
	if session == nil || session.ID != "S2" {
		t.Fatalf("expected current session S2, got %+v", session)
	}
	// The earlier session is still reachable by id.
	if engine.registry.GetSessionByID("S1") == nil {
		t.Error("S1 evicted by a new session start")
	}
}

func TestNewSessionInitializesBlankAggregates(t *testing.T) {
	engine := newTestEngine(t)

	session := engine.registry.NewSession("S1", "C1", "U1", 2, "h3", true)

	if session.CurrentDisguise != DefaultDisguiseID {
		t.Errorf("expected default disguise, got %s", session.CurrentDisguise)
	}
	if session.TargetKills.Len() != 0 || session.CompletedObjectives.Len() != 0 {
		t.Error("aggregates not empty on a fresh session")
	}
	if !session.Scored {
		t.Error("explicit sessions default to scored")
	}
	if session.ContractType != "mission" {
		t.Errorf("contract type not mirrored from manifest: %s", session.ContractType)
	}
}

func TestNewSessionSeedsObjectiveTracking(t *testing.T) {
	engine := newTestEngine(t)

	session := engine.registry.NewSession("S1", "C1", "U1", 2, "h3", true)

	if _, ok := session.Objectives["O1"]; !ok {
		t.Fatal("objective O1 not registered")
	}
	if session.ObjectiveStates["O1"] != InitialObjectiveState {
		t.Errorf("expected initial state, got %s", session.ObjectiveStates["O1"])
	}
	if got, _ := session.ObjectiveContexts["O1"]["Kills"].(float64); got != 0 {
		t.Errorf("objective context not seeded from definition: %v", session.ObjectiveContexts["O1"])
	}
}

func TestGetCurrentStateUnknownSessionIsStart(t *testing.T) {
	engine := newTestEngine(t)

	if state := engine.registry.GetCurrentState("nope", "O1"); state != InitialObjectiveState {
		t.Errorf("unknown session must report %q, got %q", InitialObjectiveState, state)
	}

	engine.registry.NewSession("S1", "C1", "U1", 2, "h3", true)
	if state := engine.registry.GetCurrentState("S1", "untracked"); state != InitialObjectiveState {
		t.Errorf("untracked objective must report %q, got %q", InitialObjectiveState, state)
	}
}

func TestLockIsStablePerSession(t *testing.T) {
	engine := newTestEngine(t)
	engine.registry.NewSession("S1", "C1", "U1", 2, "h3", true)

	if engine.registry.Lock("S1") != engine.registry.Lock("S1") {
		t.Error("expected the same mutex for repeated lookups")
	}
	if engine.registry.Lock("S1") == engine.registry.Lock("other") {
		t.Error("expected distinct mutexes per session")
	}
}
