package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epochish/klarita/internal/breakdown"
)

// TaskRow is the slice of task history the aggregators consume.
type TaskRow struct {
	Title            string
	Status           breakdown.TaskStatus
	EstimatedMinutes int
	TimeOfDay        string
	SessionCreatedAt time.Time
	CompletedAt      *time.Time
}

// RatedSessionRow pairs a session goal with its feedback rating.
type RatedSessionRow struct {
	Goal   string
	Rating int
}

// ProfileStats is the gamification echo included in quick stats. Zero
// values when the user has no profile yet.
type ProfileStats struct {
	TotalXP       int
	Level         int
	CurrentStreak int
	LongestStreak int
}

// Repository loads the raw history rows the pure aggregators work on.
type Repository interface {
	LoadTaskRows(ctx context.Context, userID uuid.UUID) ([]TaskRow, error)
	LoadRatedSessions(ctx context.Context, userID uuid.UUID) ([]RatedSessionRow, error)
	LoadProfileStats(ctx context.Context, userID uuid.UUID) (ProfileStats, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed analytics repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) LoadTaskRows(ctx context.Context, userID uuid.UUID) ([]TaskRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.title, t.status, t.estimated_duration_minutes, COALESCE(s.context->>'time_of_day', ''), s.created_at, t.completed_at
		FROM tasks t
		JOIN task_sessions s ON s.id = t.session_id
		WHERE s.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading task rows: %w", err)
	}
	defer rows.Close()

	var result []TaskRow
	for rows.Next() {
		var tr TaskRow
		if err := rows.Scan(&tr.Title, &tr.Status, &tr.EstimatedMinutes, &tr.TimeOfDay, &tr.SessionCreatedAt, &tr.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		result = append(result, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) LoadRatedSessions(ctx context.Context, userID uuid.UUID) ([]RatedSessionRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.goal, f.rating
		FROM session_feedback f
		JOIN task_sessions s ON s.id = f.session_id
		WHERE s.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading rated sessions: %w", err)
	}
	defer rows.Close()

	var result []RatedSessionRow
	for rows.Next() {
		var rr RatedSessionRow
		if err := rows.Scan(&rr.Goal, &rr.Rating); err != nil {
			return nil, fmt.Errorf("scanning rated session: %w", err)
		}
		result = append(result, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rated sessions: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) LoadProfileStats(ctx context.Context, userID uuid.UUID) (ProfileStats, error) {
	var ps ProfileStats
	err := r.pool.QueryRow(ctx, `
		SELECT total_xp, level, current_streak, longest_streak
		FROM gamification_profiles
		WHERE user_id = $1
	`, userID).Scan(&ps.TotalXP, &ps.Level, &ps.CurrentStreak, &ps.LongestStreak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileStats{}, nil
		}
		return ProfileStats{}, fmt.Errorf("loading profile stats: %w", err)
	}
	return ps, nil
}
