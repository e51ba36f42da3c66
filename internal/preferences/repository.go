package preferences

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RatedSession is one feedback observation the learner consumes: the rating
// and the estimated minutes of every task in that session.
type RatedSession struct {
	Rating      int
	TaskMinutes []int
}

// Repository persists per-user generation preferences.
type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*UserPreference, error)
	Update(ctx context.Context, pref UserPreference) (*UserPreference, error)
	LoadRecentRatedSessions(ctx context.Context, userID uuid.UUID, limit int) ([]RatedSession, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed preferences repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// GetOrCreate returns the user's preferences, materializing the default row
// on first touch.
func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*UserPreference, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring preferences: %w", err)
	}

	var pref UserPreference
	err = r.pool.QueryRow(ctx, `
		SELECT user_id, breakdown_style, preferred_task_duration_minutes, communication_style, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`, userID).Scan(&pref.UserID, &pref.BreakdownStyle, &pref.PreferredTaskMinutes, &pref.CommunicationStyle, &pref.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	return &pref, nil
}

// Update overwrites all preference fields, creating the row if it does not
// exist yet.
func (r *postgresRepository) Update(ctx context.Context, pref UserPreference) (*UserPreference, error) {
	updated := pref
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_preferences (user_id, breakdown_style, preferred_task_duration_minutes, communication_style)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			breakdown_style = EXCLUDED.breakdown_style,
			preferred_task_duration_minutes = EXCLUDED.preferred_task_duration_minutes,
			communication_style = EXCLUDED.communication_style,
			updated_at = now()
		RETURNING updated_at
	`, pref.UserID, pref.BreakdownStyle, pref.PreferredTaskMinutes, pref.CommunicationStyle).Scan(&updated.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating preferences: %w", err)
	}
	return &updated, nil
}

// LoadRecentRatedSessions returns the user's latest rated sessions, newest
// first, each with the estimated minutes of its tasks.
func (r *postgresRepository) LoadRecentRatedSessions(ctx context.Context, userID uuid.UUID, limit int) ([]RatedSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.rating, array_remove(array_agg(t.estimated_duration_minutes ORDER BY t.position), NULL)
		FROM session_feedback f
		JOIN task_sessions s ON s.id = f.session_id
		LEFT JOIN tasks t ON t.session_id = s.id
		WHERE s.user_id = $1
		GROUP BY f.session_id, f.rating, f.created_at
		ORDER BY f.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading rated sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]RatedSession, 0)
	for rows.Next() {
		var rs RatedSession
		if err := rows.Scan(&rs.Rating, &rs.TaskMinutes); err != nil {
			return nil, fmt.Errorf("scanning rated session: %w", err)
		}
		sessions = append(sessions, rs)
	}
	return sessions, rows.Err()
}
