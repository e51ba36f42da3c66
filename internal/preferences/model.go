package preferences

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied when a user has no stored preferences yet.
const (
	DefaultBreakdownStyle     = "detailed"
	DefaultTaskMinutes        = 25
	DefaultCommunicationStyle = "encouraging"
)

// UserPreference shapes how breakdowns are generated and phrased for a user.
// BreakdownStyle is either "detailed" or "simple"; the learner may rewrite
// both style and duration from accumulated feedback.
type UserPreference struct {
	UserID               uuid.UUID `json:"user_id"`
	BreakdownStyle       string    `json:"breakdown_style"`
	PreferredTaskMinutes int       `json:"preferred_task_duration_minutes"`
	CommunicationStyle   string    `json:"communication_style"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Default returns the preference profile used before any learning happens.
func Default(userID uuid.UUID) UserPreference {
	return UserPreference{
		UserID:               userID,
		BreakdownStyle:       DefaultBreakdownStyle,
		PreferredTaskMinutes: DefaultTaskMinutes,
		CommunicationStyle:   DefaultCommunicationStyle,
	}
}

// UpdatePreferencesRequest overwrites a user's stored preferences.
type UpdatePreferencesRequest struct {
	BreakdownStyle       string `json:"breakdown_style" validate:"required,oneof=detailed simple"`
	PreferredTaskMinutes int    `json:"preferred_task_duration_minutes" validate:"required,min=5,max=240"`
	CommunicationStyle   string `json:"communication_style" validate:"required,oneof=encouraging direct gentle"`
}
