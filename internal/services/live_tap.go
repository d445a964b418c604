package services

import (
	"log"
	"sync"

	"masquerade/internal/models"
)

// LiveSubscriber is one websocket watcher of a user's outbound event feed.
type LiveSubscriber struct {
	ConnID string
	UserID string
	Events chan models.ClientEvent
}

// LiveTap fans enqueued events out to debug websocket subscribers. A
// subscriber that cannot keep up has events dropped rather than blocking
// the queue's enqueue path.
type LiveTap struct {
	subscribers map[string]*LiveSubscriber
	mutex       sync.RWMutex
}

// NewLiveTap creates an empty tap.
func NewLiveTap() *LiveTap {
	return &LiveTap{
		subscribers: make(map[string]*LiveSubscriber),
	}
}

// Add registers a subscriber.
func (t *LiveTap) Add(sub *LiveSubscriber) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.subscribers[sub.ConnID] = sub
	log.Printf("✅ [LIVE] Subscriber added: %s watching %s (Total: %d)", sub.ConnID, sub.UserID, len(t.subscribers))
}

// Remove drops a subscriber and closes its channel.
func (t *LiveTap) Remove(connID string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if sub, exists := t.subscribers[connID]; exists {
		close(sub.Events)
		delete(t.subscribers, connID)
		log.Printf("❌ [LIVE] Subscriber removed: %s (Total: %d)", connID, len(t.subscribers))
	}
}

// Publish forwards one enqueued event to every subscriber watching that
// user. Non-blocking: slow subscribers lose events.
func (t *LiveTap) Publish(userID string, event models.ClientEvent) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	for _, sub := range t.subscribers {
		if sub.UserID != userID {
			continue
		}
		select {
		case sub.Events <- event:
		default:
		}
	}
}

// Count returns the number of active subscribers.
func (t *LiveTap) Count() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.subscribers)
}
