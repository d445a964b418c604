package models

import "encoding/json"

// EventQueueEntry is one queued server→client event. Time is a
// process-monotonic counter value, not wall clock; it exists purely as an
// ordering/retention cursor for the polling drain.
type EventQueueEntry struct {
	Time  int64       `json:"time"`
	Event ClientEvent `json:"event"`
}

// PushMessageEntry is one queued encoded push message.
type PushMessageEntry struct {
	Time    int64  `json:"time"`
	Message string `json:"encodedMessage"`
}

// SaveEventsRequest is the body of SaveEvents2.
type SaveEventsRequest struct {
	UserID string          `json:"userId"`
	Values json.RawMessage `json:"values"`
}

// SyncRequest is the body of SaveAndSynchronizeEvents3. Protocol v4 adds
// LastPushDt as a second drain cursor for push messages.
type SyncRequest struct {
	UserID         string          `json:"userId"`
	LastEventTicks int64           `json:"lastEventTicks"`
	LastPushDt     int64           `json:"lastPushDt,omitempty"`
	Values         json.RawMessage `json:"values"`
}

// DecodeValues validates and decodes the request's values array. The second
// return is false when values is present but not a JSON array.
func decodeValues(raw json.RawMessage) ([]ClientEvent, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var events []ClientEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, false
	}
	return events, true
}

// DecodeValues validates and decodes the sync request's values array.
func (r *SyncRequest) DecodeValues() ([]ClientEvent, bool) {
	return decodeValues(r.Values)
}

// DecodeValues validates and decodes the save request's values array.
func (r *SaveEventsRequest) DecodeValues() ([]ClientEvent, bool) {
	return decodeValues(r.Values)
}

// SyncResponse3 is the SaveAndSynchronizeEvents3 response. NewEvents is null
// (not an empty array) when the drain produced nothing.
type SyncResponse3 struct {
	SavedTokens []string      `json:"SavedTokens"`
	NewEvents   []ClientEvent `json:"NewEvents"`
	NextPoll    float64       `json:"NextPoll"`
}

// SyncResponse4 adds the drained push messages; null when empty.
type SyncResponse4 struct {
	SavedTokens  []string      `json:"SavedTokens"`
	NewEvents    []ClientEvent `json:"NewEvents"`
	NextPoll     float64       `json:"NextPoll"`
	PushMessages []string      `json:"PushMessages"`
}
