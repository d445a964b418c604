package services

import (
	"testing"

	"masquerade/internal/models"
)

func TestEnqueueEventTokensStrictlyIncrease(t *testing.T) {
	engine := newTestEngine(t)

	var last int64
	for i := 0; i < 100; i++ {
		tick := engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "Ping"})
		if tick <= last {
			t.Fatalf("tick %d not greater than previous %d", tick, last)
		}
		last = tick
	}
}

func TestEnqueueEventStampsTokenAndCreatedAt(t *testing.T) {
	engine := newTestEngine(t)

	tick := engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "Ping"})
	resp := engine.queue.SaveAndSyncEvents3("U1", nil, "h3", 0)
	if len(resp.NewEvents) != 1 {
		t.Fatalf("expected 1 drained event, got %d", len(resp.NewEvents))
	}
	event := resp.NewEvents[0]
	if event.Token != FormatToken(tick) {
		t.Errorf("expected token %s, got %s", FormatToken(tick), event.Token)
	}
	if event.CreatedAt == "" {
		t.Error("CreatedAt was not stamped on enqueue")
	}
}

func TestDrainIdempotence(t *testing.T) {
	engine := newTestEngine(t)

	engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "A"})
	engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "B"})

	resp := engine.queue.SaveAndSyncEvents3("U1", nil, "h3", 0)
	if len(resp.NewEvents) != 2 {
		t.Fatalf("expected 2 events on first drain, got %d", len(resp.NewEvents))
	}

	// Unchanged cursor: nothing left, NewEvents must be null (nil slice).
	resp = engine.queue.SaveAndSyncEvents3("U1", nil, "h3", 0)
	if resp.NewEvents != nil {
		t.Errorf("expected nil NewEvents on repeat drain, got %v", resp.NewEvents)
	}
}

func TestDrainDiscardsEntriesAtOrBelowCursor(t *testing.T) {
	engine := newTestEngine(t)

	t1 := engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "A"})
	engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "B"})

	resp := engine.queue.SaveAndSyncEvents3("U1", nil, "h3", t1)
	if len(resp.NewEvents) != 1 || resp.NewEvents[0].Name != "B" {
		t.Fatalf("expected only B past cursor, got %v", resp.NewEvents)
	}

	// A cursor at or past the max issued tick always drains nothing,
	// and the discarded entry is never replayed.
	engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "C"})
	resp = engine.queue.SaveAndSyncEvents3("U1", nil, "h3", engine.ticks.Next())
	if resp.NewEvents != nil {
		t.Errorf("cursor past max tick should drain nothing, got %v", resp.NewEvents)
	}
	resp = engine.queue.SaveAndSyncEvents3("U1", nil, "h3", 0)
	if resp.NewEvents != nil {
		t.Errorf("discarded entries were replayed: %v", resp.NewEvents)
	}
}

func TestSyncV4EmptyPolls(t *testing.T) {
	engine := newTestEngine(t)

	for i := 0; i < 2; i++ {
		resp := engine.queue.SaveAndSyncEvents4("U1", nil, "h3", 0, 0)
		if resp.NewEvents != nil {
			t.Errorf("poll %d: expected NewEvents null, got %v", i, resp.NewEvents)
		}
		if resp.PushMessages != nil {
			t.Errorf("poll %d: expected PushMessages null, got %v", i, resp.PushMessages)
		}
		if resp.NextPoll != 10.0 {
			t.Errorf("poll %d: expected NextPoll 10.0, got %f", i, resp.NextPoll)
		}
		if len(resp.SavedTokens) != 0 {
			t.Errorf("poll %d: expected no tokens for an empty batch, got %v", i, resp.SavedTokens)
		}
	}
}

func TestSyncV4DrainsPushMessages(t *testing.T) {
	engine := newTestEngine(t)

	engine.queue.EnqueuePushMessage("U1", map[string]any{"hello": "world"})

	resp := engine.queue.SaveAndSyncEvents4("U1", nil, "h3", 0, 0)
	if len(resp.PushMessages) != 1 {
		t.Fatalf("expected 1 push message, got %d", len(resp.PushMessages))
	}
	if resp.PushMessages[0] == "" {
		t.Error("drained push message is empty")
	}

	resp = engine.queue.SaveAndSyncEvents4("U1", nil, "h3", 0, 0)
	if resp.PushMessages != nil {
		t.Errorf("push messages replayed: %v", resp.PushMessages)
	}
}

func TestQueuesAreIndependentPerUser(t *testing.T) {
	engine := newTestEngine(t)

	engine.queue.EnqueueEvent("U1", models.ClientEvent{Name: "A"})
	engine.queue.EnqueueEvent("U2", models.ClientEvent{Name: "B"})

	resp := engine.queue.SaveAndSyncEvents3("U1", nil, "h3", 0)
	if len(resp.NewEvents) != 1 || resp.NewEvents[0].Name != "A" {
		t.Fatalf("U1 drain wrong: %v", resp.NewEvents)
	}

	events, _ := engine.queue.Depth()
	if events != 1 {
		t.Errorf("expected U2's entry to survive, depth=%d", events)
	}
}
