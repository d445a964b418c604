package services

import (
	"strconv"
	"sync/atomic"
	"time"
)

// nowFunc is swapped out by tests that need a fixed wall clock.
var nowFunc = time.Now

// TickSource issues the process-monotonic counter used for event ack tokens
// and queue retention cursors. Never wall clock: ordering must survive clock
// adjustments, and tokens must be strictly increasing within a process run.
type TickSource struct {
	last atomic.Int64
}

// NewTickSource creates a counter starting at zero.
func NewTickSource() *TickSource {
	return &TickSource{}
}

// Next returns the next tick. Safe for concurrent use.
func (t *TickSource) Next() int64 {
	return t.last.Add(1)
}

// Token returns the next tick in its opaque string form.
func (t *TickSource) Token() string {
	return strconv.FormatInt(t.Next(), 10)
}

// FormatToken renders a tick as the opaque token handed to clients.
func FormatToken(tick int64) string {
	return strconv.FormatInt(tick, 10)
}
