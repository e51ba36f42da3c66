package gamification

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a user's gamification aggregate. Mutated exclusively through
// the engine inside the completion transaction; total_xp never decreases and
// level is always floor(total_xp / level_step).
type Profile struct {
	UserID             uuid.UUID  `json:"user_id"`
	TotalXP            int        `json:"total_xp"`
	Level              int        `json:"level"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastCompletionDate *time.Time `json:"last_completion_date,omitempty"`
	Badges             []string   `json:"badges"`
	TasksCompleted     int        `json:"tasks_completed"`
	Version            int        `json:"-"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CompletionResult reports what one completion earned, for UI feedback.
// XPEarned always equals the profile's total_xp delta.
type CompletionResult struct {
	XPEarned      int      `json:"xp_earned"`
	LevelUp       bool     `json:"level_up"`
	NewLevel      int      `json:"new_level"`
	NewBadges     []string `json:"new_badges,omitempty"`
	CurrentStreak int      `json:"current_streak"`
	TotalXP       int      `json:"total_xp"`
}

// CompleteTaskRequest optionally reports how long the task actually took,
// which drives the focus bonus.
type CompleteTaskRequest struct {
	ActualMinutes *int `json:"actual_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}
