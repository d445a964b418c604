package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"masquerade/internal/contracts"
	"masquerade/internal/models"
	"masquerade/internal/statemachine"
)

// testContract is a minimal mission: one primary objective that succeeds on
// a target kill.
const testContract = `{
	"Metadata": {
		"Id": "C1",
		"Title": "Test Mission",
		"Type": "mission"
	},
	"Data": {
		"Objectives": [
			{
				"Id": "O1",
				"Category": "primary",
				"Definition": {
					"Context": {"Kills": 0},
					"States": {
						"Start": {
							"Kill": {
								"Condition": {"$eq": ["$Value.IsTarget", true]},
								"Transition": "Success"
							}
						}
					}
				}
			}
		]
	}
}`

const arcadeContract = `{
	"Metadata": {
		"Id": "A1",
		"Type": "arcade",
		"InGroup": "group-1"
	},
	"Data": {
		"Objectives": [
			{
				"Id": "AO1",
				"Category": "primary",
				"Definition": {
					"States": {
						"Start": {
							"Kill": {"Transition": "Success"}
						}
					}
				}
			}
		]
	}
}`

// testEngine wires a full in-memory engine over a throwaway contracts dir.
type testEngine struct {
	registry *SessionRegistry
	pipeline *EventPipeline
	queue    *PushQueue
	finisher *FailureFinisher
	ticks    *TickSource
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	dir := t.TempDir()
	for name, body := range map[string]string{
		"C1.json": testContract,
		"A1.json": arcadeContract,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write contract fixture: %v", err)
		}
	}

	resolver := contracts.NewResolver(dir)
	ticks := NewTickSource()
	objectives := NewObjectiveRunner(statemachine.Evaluate)
	scoring := NewScoringRunner(statemachine.Evaluate)
	challenges := NewChallengeService(statemachine.Evaluate, nil)
	registry := NewSessionRegistry(resolver, challenges, objectives, scoring, 2)

	queue := NewPushQueue(ticks, 10.0)
	finisher := NewFailureFinisher(nil, nil, queue)
	pipeline := NewEventPipeline(registry, objectives, scoring, challenges, nil, finisher, ticks, nil)
	pipeline.AddHook(NewGhostModeHandler())
	queue.SetPipeline(pipeline)

	return &testEngine{
		registry: registry,
		pipeline: pipeline,
		queue:    queue,
		finisher: finisher,
		ticks:    ticks,
	}
}

// ev builds a client event bound to a session.
func ev(name string, timestamp float64, value any, sessionID, contractID string) models.ClientEvent {
	event := models.ClientEvent{
		Name:              name,
		Timestamp:         timestamp,
		ContractSessionID: sessionID,
		ContractID:        contractID,
	}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			panic(err)
		}
		event.Value = raw
	}
	return event
}
