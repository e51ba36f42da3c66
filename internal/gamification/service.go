package gamification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/metrics"
	inats "github.com/epochish/klarita/internal/nats"
)

// Service fronts the completion transaction with metrics and events.
type Service struct {
	repo   Repository
	events *inats.Publisher
}

func NewService(repo Repository, events *inats.Publisher) *Service {
	return &Service{repo: repo, events: events}
}

// CompleteTask marks a pending task completed and applies the earned XP,
// streak, and badge updates atomically. Returns nil when the task does not
// exist or belongs to someone else.
func (s *Service) CompleteTask(ctx context.Context, taskID, userID uuid.UUID, req CompleteTaskRequest) (*Completion, error) {
	completion, err := s.repo.CompleteTask(ctx, taskID, userID, req.ActualMinutes)
	if err != nil || completion == nil {
		return nil, err
	}

	metrics.TasksCompletedTotal.Inc()
	metrics.XPAwardedTotal.Add(float64(completion.Result.XPEarned))
	if completion.Result.LevelUp {
		metrics.LevelUpsTotal.Inc()
	}

	if err := s.events.PublishTaskCompleted(ctx, inats.TaskCompletedEvent{
		TaskID:    completion.Task.ID,
		SessionID: completion.Task.SessionID,
		UserID:    userID,
		Title:     completion.Task.Title,
		XPEarned:  completion.Result.XPEarned,
		NewLevel:  completion.Result.NewLevel,
		LevelUp:   completion.Result.LevelUp,
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("failed to publish task completed event", "task_id", taskID, "error", err)
	}

	slog.Info("task completed",
		"task_id", taskID,
		"user_id", userID,
		"xp_earned", completion.Result.XPEarned,
		"level_up", completion.Result.LevelUp,
		"streak", completion.Result.CurrentStreak)
	return completion, nil
}

// GetProfile returns the user's gamification profile, creating the default
// lazily for users who have never completed anything.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.repo.GetOrCreateProfile(ctx, userID)
}
