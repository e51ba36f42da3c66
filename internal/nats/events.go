package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents carries every domain event the API emits.
const StreamEvents = "KLARITA_EVENTS"

// Subject constants.
const (
	SubjectBreakdownCreated = "klarita.events.breakdown_created"
	SubjectTaskCompleted    = "klarita.events.task_completed"
	SubjectSessionRated     = "klarita.events.session_rated"
	SubjectMemoryPromoted   = "klarita.events.memory_promoted"

	// SubjectWildcard matches every event subject on the stream.
	SubjectWildcard = "klarita.events.>"
)

// BreakdownCreatedEvent is published after a breakdown session and its tasks
// are persisted.
type BreakdownCreatedEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Goal      string    `json:"goal"`
	TaskCount int       `json:"task_count"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskCompletedEvent is published after a task completion is committed.
type TaskCompletedEvent struct {
	TaskID    uuid.UUID `json:"task_id"`
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	XPEarned  int       `json:"xp_earned"`
	NewLevel  int       `json:"new_level"`
	LevelUp   bool      `json:"level_up"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRatedEvent is published when feedback lands on a session.
type SessionRatedEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryPromotedEvent is published when a highly rated session is promoted
// into the long-term memory corpus.
type MemoryPromotedEvent struct {
	MemoryID  uuid.UUID `json:"memory_id"`
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}
