package gamification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epochish/klarita/internal/breakdown"
)

var (
	// ErrAlreadyCompleted signals a completion call on a task that is not
	// pending. The profile is left untouched.
	ErrAlreadyCompleted = errors.New("task is already completed")
	// ErrUpdateConflict signals that concurrent completions exhausted the
	// optimistic retries.
	ErrUpdateConflict = errors.New("profile was updated concurrently")
)

const maxCompleteAttempts = 3

// Completion bundles everything one successful completion produced. Only the
// Result goes back over the wire; Task and Profile feed events and logging.
type Completion struct {
	Task    *breakdown.Task
	Profile *Profile
	Result  CompletionResult
}

// Repository persists gamification profiles and executes completions.
type Repository interface {
	GetOrCreateProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	CompleteTask(ctx context.Context, taskID, userID uuid.UUID, actualMinutes *int) (*Completion, error)
}

type postgresRepository struct {
	pool   *pgxpool.Pool
	engine *Engine
}

// NewRepository creates a PostgreSQL-backed gamification repository. The
// engine runs inside the completion transaction so XP, streak, and badge
// updates commit atomically with the task flip.
func NewRepository(pool *pgxpool.Pool, engine *Engine) Repository {
	return &postgresRepository{pool: pool, engine: engine}
}

func (r *postgresRepository) GetOrCreateProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gamification_profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring profile: %w", err)
	}

	return scanProfile(r.pool.QueryRow(ctx, `
		SELECT user_id, total_xp, level, current_streak, longest_streak, last_completion_date, badges, tasks_completed, version, updated_at
		FROM gamification_profiles
		WHERE user_id = $1
	`, userID))
}

// CompleteTask flips the task, scores it, and persists the profile in one
// transaction per attempt. A lost optimistic race rolls the whole attempt
// back and retries from scratch, so XP is never double-counted and a failed
// call leaves the profile exactly as it was.
func (r *postgresRepository) CompleteTask(ctx context.Context, taskID, userID uuid.UUID, actualMinutes *int) (*Completion, error) {
	for attempt := 1; attempt <= maxCompleteAttempts; attempt++ {
		completion, err := r.completeOnce(ctx, taskID, userID, actualMinutes)
		if errors.Is(err, ErrUpdateConflict) {
			slog.Warn("profile version conflict, retrying completion",
				"task_id", taskID, "user_id", userID, "attempt", attempt)
			continue
		}
		return completion, err
	}
	return nil, ErrUpdateConflict
}

func (r *postgresRepository) completeOnce(ctx context.Context, taskID, userID uuid.UUID, actualMinutes *int) (*Completion, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var tzName string
	if err := tx.QueryRow(ctx, `SELECT timezone FROM users WHERE id = $1`, userID).Scan(&tzName); err != nil {
		return nil, fmt.Errorf("fetching user timezone: %w", err)
	}
	loc := time.UTC
	if tzName != "" {
		if parsed, err := time.LoadLocation(tzName); err == nil {
			loc = parsed
		} else {
			slog.Warn("invalid user timezone, falling back to UTC", "user_id", userID, "timezone", tzName)
		}
	}

	var task breakdown.Task
	err = tx.QueryRow(ctx, `
		UPDATE tasks t
		SET status = 'completed', completed_at = now(), updated_at = now()
		FROM task_sessions s
		WHERE t.id = $1 AND s.id = t.session_id AND s.user_id = $2 AND t.status = 'pending'
		RETURNING t.id, t.session_id, t.title, t.description, t.estimated_duration_minutes, t.priority, t.status, t.position, t.completed_at, t.created_at, t.updated_at
	`, taskID, userID).Scan(&task.ID, &task.SessionID, &task.Title, &task.Description, &task.EstimatedDuration,
		&task.Priority, &task.Status, &task.Position, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.classifyFlipMiss(ctx, tx, taskID, userID)
		}
		return nil, fmt.Errorf("completing task: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO gamification_profiles (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring profile: %w", err)
	}

	profile, err := scanProfile(tx.QueryRow(ctx, `
		SELECT user_id, total_xp, level, current_streak, longest_streak, last_completion_date, badges, tasks_completed, version, updated_at
		FROM gamification_profiles
		WHERE user_id = $1
	`, userID))
	if err != nil {
		return nil, err
	}

	completedAt := time.Now()
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}
	updated, result := r.engine.Apply(*profile, CompletionInput{
		Priority:         task.Priority,
		EstimatedMinutes: task.EstimatedDuration,
		ActualMinutes:    actualMinutes,
		CompletedAt:      completedAt,
		Location:         loc,
	})

	badgesJSON, err := json.Marshal(updated.Badges)
	if err != nil {
		return nil, fmt.Errorf("marshalling badges: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE gamification_profiles
		SET total_xp = $2, level = $3, current_streak = $4, longest_streak = $5,
		    last_completion_date = $6, badges = $7, tasks_completed = $8,
		    version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $9
	`, userID, updated.TotalXP, updated.Level, updated.CurrentStreak, updated.LongestStreak,
		updated.LastCompletionDate, badgesJSON, updated.TasksCompleted, profile.Version)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUpdateConflict
	}
	updated.Version = profile.Version + 1

	_, err = tx.Exec(ctx, `
		INSERT INTO task_completions (task_id, user_id, session_id, priority, estimated_minutes, actual_minutes, xp_earned, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, task.ID, userID, task.SessionID, task.Priority, task.EstimatedDuration, actualMinutes, result.XPEarned, completedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting completion record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &Completion{Task: &task, Profile: &updated, Result: result}, nil
}

// classifyFlipMiss distinguishes "already completed" from "not yours / not
// found" after the flip matched zero rows.
func (r *postgresRepository) classifyFlipMiss(ctx context.Context, tx pgx.Tx, taskID, userID uuid.UUID) (*Completion, error) {
	var status breakdown.TaskStatus
	err := tx.QueryRow(ctx, `
		SELECT t.status
		FROM tasks t
		JOIN task_sessions s ON s.id = t.session_id
		WHERE t.id = $1 AND s.user_id = $2
	`, taskID, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking task status: %w", err)
	}
	if status == breakdown.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	return nil, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.UserID, &p.TotalXP, &p.Level, &p.CurrentStreak, &p.LongestStreak,
		&p.LastCompletionDate, &p.Badges, &p.TasksCompleted, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	return &p, nil
}
