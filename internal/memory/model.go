package memory

import (
	"time"

	"github.com/google/uuid"
)

// Context is the situational snapshot supplied with a breakdown request.
// It is never persisted as its own entity; sessions and memories embed it
// as JSONB.
type Context struct {
	TimeOfDay   string `json:"time_of_day" validate:"required,oneof=morning afternoon evening night"`
	Mood        string `json:"mood,omitempty" validate:"omitempty,max=32"`
	EnergyLevel string `json:"energy_level,omitempty" validate:"omitempty,oneof=low medium high"`
}

// Memory is one promoted breakdown session: the goal, the context it was
// requested under, and the titles of the tasks the user actually completed.
// Rows are append-only; nothing in the learning loop updates or deletes them.
type Memory struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	SessionID      uuid.UUID `json:"session_id"`
	GoalText       string    `json:"goal_text"`
	Context        Context   `json:"context"`
	TaskTitles     []string  `json:"task_titles"`
	OutcomeRating  int       `json:"outcome_rating"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchResult wraps a Memory with its cosine similarity to the query.
type SearchResult struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// SimilarityQuery bundles the knobs of one nearest-neighbour search.
// MatchContext, when set, restricts results to memories sharing the
// request's time-of-day bucket or mood.
type SimilarityQuery struct {
	UserID         uuid.UUID
	Embedding      []float32
	EmbeddingModel string
	Limit          int
	MinSimilarity  float64
	MatchContext   *Context
}
