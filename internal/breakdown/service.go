package breakdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/memory"
	"github.com/epochish/klarita/internal/metrics"
	inats "github.com/epochish/klarita/internal/nats"
	"github.com/epochish/klarita/internal/preferences"
)

// PreferenceSource supplies the preferences rendered into prompts.
type PreferenceSource interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*preferences.UserPreference, error)
}

// PreferenceLearner re-derives a user's preferences from accumulated
// feedback. Invoked after each feedback submission.
type PreferenceLearner interface {
	Learn(ctx context.Context, userID uuid.UUID) error
}

// Service runs the breakdown pipeline: retrieve memories, compose a prompt,
// generate tasks, persist the session. It also owns session mutations and
// the feedback path that feeds the learning loop.
type Service struct {
	repo            Repository
	retriever       *memory.Retriever
	composer        *Composer
	generator       *Generator
	writer          *memory.Writer
	prefs           PreferenceSource
	learner         PreferenceLearner
	events          *inats.Publisher
	retrievalK      int
	memoryMinRating int
}

// NewService wires the pipeline together.
func NewService(
	repo Repository,
	retriever *memory.Retriever,
	composer *Composer,
	generator *Generator,
	writer *memory.Writer,
	prefs PreferenceSource,
	learner PreferenceLearner,
	events *inats.Publisher,
	cfg config.RetrievalConfig,
) *Service {
	return &Service{
		repo:            repo,
		retriever:       retriever,
		composer:        composer,
		generator:       generator,
		writer:          writer,
		prefs:           prefs,
		learner:         learner,
		events:          events,
		retrievalK:      cfg.K,
		memoryMinRating: cfg.MemoryMinRating,
	}
}

// CreateBreakdown turns a goal into a persisted TaskSession. Retrieval
// degradation never blocks generation; a generation failure leaves nothing
// behind.
func (s *Service) CreateBreakdown(ctx context.Context, userID uuid.UUID, req CreateBreakdownRequest) (*TaskSession, error) {
	memories := s.retriever.Retrieve(ctx, userID, req.Goal, req.Context, s.retrievalK)

	prefs := preferences.Default(userID)
	if stored, err := s.prefs.GetOrCreate(ctx, userID); err != nil {
		slog.Warn("failed to load preferences, using defaults", "user_id", userID, "error", err)
	} else {
		prefs = *stored
	}

	prompt := s.composer.Compose(req.Goal, req.Context, memories, prefs)
	drafts, err := s.generator.Generate(ctx, prompt, prefs.PreferredTaskMinutes)
	if err != nil {
		metrics.BreakdownsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("generating breakdown: %w", err)
	}

	session := &TaskSession{
		ID:      uuid.New(),
		UserID:  userID,
		Goal:    req.Goal,
		Context: req.Context,
		Tasks:   make([]Task, 0, len(drafts)),
	}
	for i, d := range drafts {
		session.Tasks = append(session.Tasks, Task{
			ID:                uuid.New(),
			SessionID:         session.ID,
			Title:             d.Title,
			Description:       d.Description,
			EstimatedDuration: d.EstimatedDuration,
			Priority:          d.Priority,
			Status:            StatusPending,
			Position:          i,
		})
	}

	if err := s.repo.CreateSessionWithTasks(ctx, session); err != nil {
		metrics.BreakdownsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	metrics.BreakdownsTotal.WithLabelValues("success").Inc()
	if err := s.events.PublishBreakdownCreated(ctx, inats.BreakdownCreatedEvent{
		SessionID: session.ID,
		UserID:    userID,
		Goal:      session.Goal,
		TaskCount: len(session.Tasks),
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("failed to publish breakdown created event", "session_id", session.ID, "error", err)
	}

	slog.Info("breakdown created",
		"session_id", session.ID,
		"user_id", userID,
		"task_count", len(session.Tasks),
		"exemplars", len(memories))
	return session, nil
}

// GetSession fetches one session with its tasks and feedback. Returns nil
// when the session does not exist; ownership is the caller's concern.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*TaskSession, error) {
	return s.repo.GetSession(ctx, sessionID)
}

// ListSessions pages through the caller's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TaskSession, int, error) {
	sessions, err := s.repo.ListSessions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountSessions(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// SubmitFeedback stores a session's one-time rating. Ratings at or above
// the memory-worthy threshold promote the session into the memory corpus;
// every rating feeds the preference learner. Both follow-ups are
// best-effort: the stored feedback is the contract.
func (s *Service) SubmitFeedback(ctx context.Context, session *TaskSession, req SubmitFeedbackRequest) (*Feedback, error) {
	fb := &Feedback{
		SessionID: session.ID,
		Rating:    req.Rating,
		Comments:  req.Comments,
	}
	if err := s.repo.InsertFeedback(ctx, fb); err != nil {
		return nil, err
	}

	if err := s.events.PublishSessionRated(ctx, inats.SessionRatedEvent{
		SessionID: session.ID,
		UserID:    session.UserID,
		Rating:    req.Rating,
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("failed to publish session rated event", "session_id", session.ID, "error", err)
	}

	if req.Rating >= s.memoryMinRating {
		if _, err := s.writer.Commit(ctx, memory.CommitRequest{
			SessionID:       session.ID,
			UserID:          session.UserID,
			Goal:            session.Goal,
			Context:         session.Context,
			CompletedTitles: completedTitles(session.Tasks),
			Rating:          req.Rating,
		}); err != nil {
			slog.Warn("failed to promote session to memory", "session_id", session.ID, "error", err)
		}
	}

	if err := s.learner.Learn(ctx, session.UserID); err != nil {
		slog.Warn("preference learning failed", "user_id", session.UserID, "error", err)
	}

	slog.Info("feedback submitted", "session_id", session.ID, "rating", req.Rating)
	return fb, nil
}

// UpdateTask applies a partial edit to an owned task. Returns nil when the
// task does not exist or belongs to someone else.
func (s *Service) UpdateTask(ctx context.Context, taskID, userID uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	task, err := s.repo.GetTaskWithOwner(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.EstimatedDuration != nil {
		task.EstimatedDuration = *req.EstimatedDuration
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ReorderTasks rewrites the session's positions to match the given
// permutation.
func (s *Service) ReorderTasks(ctx context.Context, sessionID, userID uuid.UUID, req ReorderTasksRequest) error {
	return s.repo.ReorderTasks(ctx, sessionID, userID, req.TaskIDs)
}

// MergeTasks collapses two or more pending tasks into one synthesized task.
func (s *Service) MergeTasks(ctx context.Context, sessionID, userID uuid.UUID, req MergeTasksRequest) (*Task, error) {
	merged, err := s.repo.MergeTasks(ctx, sessionID, userID, req.TaskIDs)
	if err != nil {
		return nil, err
	}
	slog.Info("tasks merged", "session_id", sessionID, "merged", len(req.TaskIDs), "task_id", merged.ID)
	return merged, nil
}

func completedTitles(tasks []Task) []string {
	var titles []string
	for _, t := range tasks {
		if t.Status == StatusCompleted {
			titles = append(titles, t.Title)
		}
	}
	return titles
}
