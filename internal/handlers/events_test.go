package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"masquerade/internal/contracts"
	"masquerade/internal/services"
	"masquerade/internal/statemachine"
)

const testContract = `{
	"Metadata": {"Id": "C1", "Type": "mission"},
	"Data": {
		"Objectives": [
			{
				"Id": "O1",
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

// mockAuthMiddleware stands in for the JWT layer and pins the user id.
func mockAuthMiddleware(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

func newTestApp(t *testing.T, userID string) (*fiber.App, *services.PushQueue) {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "C1.json"), []byte(testContract), 0o644); err != nil {
		t.Fatalf("failed to write contract fixture: %v", err)
	}

	resolver := contracts.NewResolver(dir)
	ticks := services.NewTickSource()
	objectives := services.NewObjectiveRunner(statemachine.Evaluate)
	scoring := services.NewScoringRunner(statemachine.Evaluate)
	challenges := services.NewChallengeService(statemachine.Evaluate, nil)
	registry := services.NewSessionRegistry(resolver, challenges, objectives, scoring, 2)
	queue := services.NewPushQueue(ticks, 10.0)
	finisher := services.NewFailureFinisher(nil, nil, queue)
	pipeline := services.NewEventPipeline(registry, objectives, scoring, challenges, nil, finisher, ticks, nil)
	queue.SetPipeline(pipeline)

	handler := NewEventsHandler(queue, nil)

	app := fiber.New()
	app.Use(mockAuthMiddleware(userID))
	app.Post("/SaveAndSynchronizeEvents3", handler.SaveAndSynchronizeEvents3)
	app.Post("/SaveAndSynchronizeEvents4", handler.SaveAndSynchronizeEvents4)
	app.Post("/SaveEvents2", handler.SaveEvents2)
	return app, queue
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func TestSyncEndpointsValidation(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           string
		expectedStatus int
	}{
		{
			name:           "missing authentication",
			userID:         "",
			body:           `{"values": []}`,
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "body names another user",
			userID:         "U1",
			body:           `{"userId": "someone-else", "values": []}`,
			expectedStatus: fiber.StatusForbidden,
		},
		{
			name:           "malformed body",
			userID:         "U1",
			body:           `{not json`,
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:           "values not an array",
			userID:         "U1",
			body:           `{"values": {"Name": "Kill"}}`,
			expectedStatus: fiber.StatusBadRequest,
		},
		{
			name:           "empty batch is fine",
			userID:         "U1",
			body:           `{"values": []}`,
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "absent values is fine",
			userID:         "U1",
			body:           `{}`,
			expectedStatus: fiber.StatusOK,
		},
	}

	for _, path := range []string{"/SaveAndSynchronizeEvents3", "/SaveAndSynchronizeEvents4", "/SaveEvents2"} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				app, _ := newTestApp(t, tt.userID)
				status, _ := postJSON(t, app, path, tt.body)
				if status != tt.expectedStatus {
					t.Errorf("expected status %d, got %d", tt.expectedStatus, status)
				}
			})
		}
	}
}

func TestSyncV3ResponseShape(t *testing.T) {
	app, _ := newTestApp(t, "U1")

	status, raw := postJSON(t, app, "/SaveAndSynchronizeEvents3", `{"values": [], "lastEventTicks": 0}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	// An idle poll drains nothing: NewEvents is null, never [].
	if string(resp["NewEvents"]) != "null" {
		t.Errorf("expected NewEvents null, got %s", resp["NewEvents"])
	}
	if string(resp["NextPoll"]) != "10" {
		t.Errorf("expected NextPoll 10, got %s", resp["NextPoll"])
	}
}

func TestSyncV4DrainsQueuedPushMessages(t *testing.T) {
	app, queue := newTestApp(t, "U1")
	queue.EnqueuePushMessage("U1", map[string]any{"type": "HelloClient"})

	status, raw := postJSON(t, app, "/SaveAndSynchronizeEvents4", `{"values": [], "lastEventTicks": 0, "lastPushDt": 0}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}

	var resp struct {
		PushMessages []string `json:"PushMessages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(resp.PushMessages) != 1 || resp.PushMessages[0] == "" {
		t.Fatalf("expected one encoded push message, got %v", resp.PushMessages)
	}

	// Second poll with the same cursor: the queue was consumed.
	_, raw = postJSON(t, app, "/SaveAndSynchronizeEvents4", `{"values": [], "lastEventTicks": 0, "lastPushDt": 0}`)
	var second map[string]json.RawMessage
	if err := json.Unmarshal(raw, &second); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if string(second["PushMessages"]) != "null" {
		t.Errorf("expected PushMessages null on repeat poll, got %s", second["PushMessages"])
	}
}

func TestSaveEvents2ReturnsBareTokenArray(t *testing.T) {
	app, _ := newTestApp(t, "U1")

	body := `{"values": [
		{"Name": "Kill", "Timestamp": 5, "ContractSessionId": "S1", "ContractId": "C1", "Value": {"RepositoryId": "T1", "IsTarget": true}},
		{"Name": "Pacify", "Timestamp": 6, "ContractSessionId": "S1", "ContractId": "C1", "Value": {"RepositoryId": "G1"}}
	]}`
	status, raw := postJSON(t, app, "/SaveEvents2", body)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}

	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		t.Fatalf("expected a bare token array, got %s", raw)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0] == "" || tokens[1] == "" || tokens[0] == tokens[1] {
		t.Errorf("tokens must be distinct and non-empty: %v", tokens)
	}
}
