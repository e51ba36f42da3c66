package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types stored in the activity log. They mirror the event stream
// subjects one to one.
const (
	EventBreakdownCreated = "breakdown_created"
	EventTaskCompleted    = "task_completed"
	EventSessionRated     = "session_rated"
	EventMemoryPromoted   = "memory_promoted"
)

// Entry is one row of a user's activity feed. Details carries the original
// event payload so the feed stays self-describing.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	EventType string          `json:"event_type"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for feed queries.
type ListParams struct {
	EventType string
	Page      int
	PageSize  int
}
