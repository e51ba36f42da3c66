package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// learnWindow caps how many recent rated sessions the heuristics consider.
const learnWindow = 10

// successRating is the feedback score from which a session counts as a
// success.
const successRating = 4

// Learner nudges stored preferences from accumulated feedback: preferred
// minutes follow the median task duration of successful sessions, and the
// breakdown style drops to "simple" when long breakdowns keep rating poorly.
type Learner struct {
	repo Repository
}

// NewLearner creates a feedback-driven preference learner.
func NewLearner(repo Repository) *Learner {
	return &Learner{repo: repo}
}

// Learn recomputes the user's learned preferences from their recent rated
// sessions. Communication style is never touched; users own that knob.
func (l *Learner) Learn(ctx context.Context, userID uuid.UUID) error {
	recent, err := l.repo.LoadRecentRatedSessions(ctx, userID, learnWindow)
	if err != nil {
		return fmt.Errorf("loading rated sessions: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	current, err := l.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	next := *current
	if minutes, ok := medianSuccessfulMinutes(recent); ok {
		next.PreferredTaskMinutes = minutes
	}
	next.BreakdownStyle = learnedStyle(recent)

	if _, err := l.repo.Update(ctx, next); err != nil {
		return fmt.Errorf("storing learned preferences: %w", err)
	}

	if next.BreakdownStyle != current.BreakdownStyle || next.PreferredTaskMinutes != current.PreferredTaskMinutes {
		slog.Info("preferences learned",
			"user_id", userID,
			"breakdown_style", next.BreakdownStyle,
			"preferred_task_minutes", next.PreferredTaskMinutes)
	}
	return nil
}

// medianSuccessfulMinutes pools task durations from sessions rated as
// successful and returns the upper median. ok is false when no successful
// session has tasks.
func medianSuccessfulMinutes(recent []RatedSession) (int, bool) {
	minutes := make([]int, 0)
	for _, rs := range recent {
		if rs.Rating < successRating {
			continue
		}
		minutes = append(minutes, rs.TaskMinutes...)
	}
	if len(minutes) == 0 {
		return 0, false
	}
	sort.Ints(minutes)
	return minutes[len(minutes)/2], true
}

// learnedStyle switches to simple breakdowns when recent sessions are both
// long and poorly rated, and back to detailed otherwise.
func learnedStyle(recent []RatedSession) string {
	ratingSum := 0
	taskSum := 0
	for _, rs := range recent {
		ratingSum += rs.Rating
		taskSum += len(rs.TaskMinutes)
	}
	avgRating := float64(ratingSum) / float64(len(recent))
	avgTasks := float64(taskSum) / float64(len(recent))
	if avgRating <= 3 && avgTasks > 10 {
		return "simple"
	}
	return DefaultBreakdownStyle
}
