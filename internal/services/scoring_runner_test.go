package services

import (
	"encoding/json"
	"testing"

	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

func decodeModules(t *testing.T, body string) []models.ScoringModule {
	t.Helper()
	var modules []models.ScoringModule
	if err := json.Unmarshal([]byte(body), &modules); err != nil {
		t.Fatalf("failed to decode modules fixture: %v", err)
	}
	return modules
}

func TestSetupScoringMergesDefinitionsAndSettings(t *testing.T) {
	modules := decodeModules(t, `[
		{
			"Type": "mission.difficulty",
			"MaxPlayers": 1,
			"TimeLimit": 300
		},
		{
			"Type": "contract.scoring",
			"ScoringDefinitions": [
				{
					"Context": {"Score": 0, "Bonus": 1},
					"States": {"Start": {}}
				},
				{
					"Context": {"Bonus": 5},
					"States": {
						"Start": {
							"Kill": {"Transition": "Scored"}
						}
					}
				}
			]
		}
	]`)

	runner := NewScoringRunner(statemachine.Evaluate)
	session := &models.ContractSession{ID: "S1", ContractID: "C1"}
	runner.SetupScoring(session, modules)

	if session.Scoring == nil {
		t.Fatal("scoring state not set up")
	}
	// Later definitions win on conflicting keys, non-conflicting keys merge.
	if got, _ := session.Scoring.Context["Bonus"].(float64); got != 5 {
		t.Errorf("expected merged Bonus 5, got %v", session.Scoring.Context["Bonus"])
	}
	if got, _ := session.Scoring.Context["Score"].(float64); got != 0 {
		t.Errorf("expected Score 0 retained from the first part, got %v", session.Scoring.Context["Score"])
	}

	// The non-scoring module lands in settings under its last type segment,
	// with the discriminator stripped.
	difficulty, ok := session.Scoring.Settings["difficulty"]
	if !ok {
		t.Fatalf("difficulty settings missing: %v", session.Scoring.Settings)
	}
	if _, hasType := difficulty["Type"]; hasType {
		t.Error("Type discriminator not stripped from settings")
	}
	if got, _ := difficulty["TimeLimit"].(float64); got != 300 {
		t.Errorf("expected TimeLimit 300, got %v", difficulty["TimeLimit"])
	}
}

func TestSetupScoringWithoutScoringModuleIsNoOp(t *testing.T) {
	modules := decodeModules(t, `[{"Type": "mission.difficulty", "MaxPlayers": 1}]`)

	runner := NewScoringRunner(statemachine.Evaluate)
	session := &models.ContractSession{ID: "S1", ContractID: "C1"}
	runner.SetupScoring(session, modules)

	if session.Scoring != nil {
		t.Errorf("settings-only contracts must not get scoring state, got %+v", session.Scoring)
	}
}

func TestScoringHandleEventTransitions(t *testing.T) {
	modules := decodeModules(t, `[
		{
			"Type": "contract.scoring",
			"ScoringDefinitions": [
				{
					"Context": {"Kills": 0},
					"States": {
						"Start": {
							"Kill": {
								"Actions": {"$inc": "$.Kills"},
								"Transition": "Scored"
							}
						}
					}
				}
			]
		}
	]`)

	runner := NewScoringRunner(statemachine.Evaluate)
	session := &models.ContractSession{ID: "S1", ContractID: "C1"}
	runner.SetupScoring(session, modules)

	event := &models.ClientEvent{Name: models.EventKill, Timestamp: 5}
	runner.HandleEvent(session, event, map[string]any{"RepositoryId": "T1"})

	if session.Scoring.State != "Scored" {
		t.Errorf("expected state Scored, got %s", session.Scoring.State)
	}
	if got, _ := session.Scoring.Context["Kills"].(float64); got != 1 {
		t.Errorf("expected Kills 1, got %v", session.Scoring.Context["Kills"])
	}

	// An event with no handler leaves state and context untouched.
	runner.HandleEvent(session, &models.ClientEvent{Name: "Pacify", Timestamp: 6}, nil)
	if session.Scoring.State != "Scored" {
		t.Errorf("state changed on an unhandled event: %s", session.Scoring.State)
	}
}
