package breakdown

import (
	"time"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/memory"
)

// Priority orders tasks by importance and scales their XP on completion.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// TaskSession groups the tasks generated for one goal. Once feedback lands
// it becomes eligible for promotion into the memory corpus.
type TaskSession struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Goal      string         `json:"goal"`
	Context   memory.Context `json:"context"`
	Promoted  bool           `json:"promoted"`
	Tasks     []Task         `json:"tasks,omitempty"`
	Feedback  *Feedback      `json:"feedback,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Task is one step of a breakdown. Positions within a session are a dense
// permutation of 0..n-1 at all times.
type Task struct {
	ID                uuid.UUID  `json:"id"`
	SessionID         uuid.UUID  `json:"session_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	EstimatedDuration int        `json:"estimated_duration_minutes"`
	Priority          Priority   `json:"priority"`
	Status            TaskStatus `json:"status"`
	Position          int        `json:"position"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Feedback is a session's one-time rating.
type Feedback struct {
	SessionID uuid.UUID `json:"session_id"`
	Rating    int       `json:"rating"`
	Comments  string    `json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateBreakdownRequest initiates a breakdown.
type CreateBreakdownRequest struct {
	Goal    string         `json:"goal" validate:"required,min=3,max=500"`
	Context memory.Context `json:"context"`
}

// SubmitFeedbackRequest rates a session.
type SubmitFeedbackRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comments string `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

// UpdateTaskRequest partially edits a task. Absent fields are left untouched.
type UpdateTaskRequest struct {
	Title             *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description       *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	EstimatedDuration *int      `json:"estimated_duration_minutes,omitempty" validate:"omitempty,min=5,max=240"`
	Priority          *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// ReorderTasksRequest carries a permutation of every task id in the session.
type ReorderTasksRequest struct {
	TaskIDs []uuid.UUID `json:"task_ids" validate:"required,min=1"`
}

// MergeTasksRequest merges two or more pending tasks into one.
type MergeTasksRequest struct {
	TaskIDs []uuid.UUID `json:"task_ids" validate:"required,min=2"`
}
