package services

import (
	"log"
	"sync"
	"time"

	"masquerade/internal/models"
	"masquerade/internal/wire"
)

// PushQueue owns the per-user FIFO queues of server→client events and
// encoded push messages, drained by the polling sync endpoints. Queues are
// intentionally unbounded and have no TTL: a client that stops polling
// leaks its entries until process restart. That risk is surfaced through
// Depth metrics instead of being silently "fixed" with different retention
// semantics.
type PushQueue struct {
	mu           sync.Mutex
	events       map[string][]models.EventQueueEntry
	pushMessages map[string][]models.PushMessageEntry

	ticks    *TickSource
	nextPoll float64
	pipeline *EventPipeline

	tap func(userID string, event models.ClientEvent)
}

// NewPushQueue creates the queue over the shared tick source. nextPoll is
// the advisory re-poll interval handed to clients.
func NewPushQueue(ticks *TickSource, nextPoll float64) *PushQueue {
	return &PushQueue{
		events:       make(map[string][]models.EventQueueEntry),
		pushMessages: make(map[string][]models.PushMessageEntry),
		ticks:        ticks,
		nextPoll:     nextPoll,
	}
}

// SetPipeline wires the ingestion pipeline after construction; the pipeline
// holds the queue for enqueues and the queue calls back into it for the
// save half of the sync endpoints.
func (q *PushQueue) SetPipeline(pipeline *EventPipeline) {
	q.pipeline = pipeline
}

// SetTap installs an observer invoked (outside the queue lock) for every
// enqueued event. Used by the live debug feed.
func (q *PushQueue) SetTap(tap func(userID string, event models.ClientEvent)) {
	q.tap = tap
}

// EnqueueEvent stamps the event with a creation time and a fresh token and
// appends it to the user's queue. Returns the tick backing the token;
// ticks strictly increase within a process run.
func (q *PushQueue) EnqueueEvent(userID string, event models.ClientEvent) int64 {
	tick := q.ticks.Next()
	event.StampCreated(time.Now())
	event.Token = FormatToken(tick)

	q.mu.Lock()
	q.events[userID] = append(q.events[userID], models.EventQueueEntry{Time: tick, Event: event})
	q.mu.Unlock()

	if q.tap != nil {
		q.tap(userID, event)
	}
	return tick
}

// EnqueuePushMessage wire-encodes the message and appends it to the user's
// push-message queue.
func (q *PushQueue) EnqueuePushMessage(userID string, message any) {
	tick := q.ticks.Next()
	encoded, err := wire.EncodePushMessage(uint64(tick), message)
	if err != nil {
		log.Printf("⚠️  [PUSHQUEUE] Dropping unencodable push message for user %s: %v", userID, err)
		return
	}

	q.mu.Lock()
	q.pushMessages[userID] = append(q.pushMessages[userID], models.PushMessageEntry{Time: tick, Message: encoded})
	q.mu.Unlock()
}

// SaveEvents runs the save half only: ingest the batch and return one token
// per event in input order (SaveEvents2).
func (q *PushQueue) SaveEvents(userID string, events []models.ClientEvent, gameVersion string) []string {
	return q.pipeline.SaveEvents(userID, events, gameVersion)
}

// SaveAndSyncEvents3 ingests the batch and drains the user's event queue
// against the client-supplied cursor. Entries at or below the cursor are
// discarded and never replayed; entries above it are returned and consumed,
// so an unchanged cursor on the next call drains nothing.
func (q *PushQueue) SaveAndSyncEvents3(userID string, events []models.ClientEvent, gameVersion string, lastEventTicks int64) models.SyncResponse3 {
	tokens := q.pipeline.SaveEvents(userID, events, gameVersion)
	return models.SyncResponse3{
		SavedTokens: tokens,
		NewEvents:   q.drainEvents(userID, lastEventTicks),
		NextPoll:    q.nextPoll,
	}
}

// SaveAndSyncEvents4 is the v4 protocol: the same drain, plus a second
// cursor over the push-message queue.
func (q *PushQueue) SaveAndSyncEvents4(userID string, events []models.ClientEvent, gameVersion string, lastEventTicks, lastPushDt int64) models.SyncResponse4 {
	tokens := q.pipeline.SaveEvents(userID, events, gameVersion)
	return models.SyncResponse4{
		SavedTokens:  tokens,
		NewEvents:    q.drainEvents(userID, lastEventTicks),
		NextPoll:     q.nextPoll,
		PushMessages: q.drainPushMessages(userID, lastPushDt),
	}
}

// drainEvents consumes the user's whole event queue, returning only entries
// newer than the cursor. Returns nil (JSON null) when nothing qualifies.
func (q *PushQueue) drainEvents(userID string, cursor int64) []models.ClientEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.events[userID]
	if len(entries) == 0 {
		return nil
	}
	delete(q.events, userID)

	var out []models.ClientEvent
	for _, entry := range entries {
		if entry.Time > cursor {
			out = append(out, entry.Event)
		}
	}
	return out
}

// drainPushMessages is drainEvents for the push-message queue.
func (q *PushQueue) drainPushMessages(userID string, cursor int64) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.pushMessages[userID]
	if len(entries) == 0 {
		return nil
	}
	delete(q.pushMessages, userID)

	var out []string
	for _, entry := range entries {
		if entry.Time > cursor {
			out = append(out, entry.Message)
		}
	}
	return out
}

// Depth reports the total queued entries across all users (metrics).
func (q *PushQueue) Depth() (events int, pushMessages int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entries := range q.events {
		events += len(entries)
	}
	for _, entries := range q.pushMessages {
		pushMessages += len(entries)
	}
	return events, pushMessages
}
