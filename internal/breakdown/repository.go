package breakdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrFeedbackExists signals that the session has already been rated.
	ErrFeedbackExists = errors.New("feedback already submitted for this session")
	// ErrTaskSetMismatch signals a reorder body that is not a permutation of
	// the session's task ids.
	ErrTaskSetMismatch = errors.New("task ids must be exactly the session's tasks")
	// ErrTaskNotFound signals merge ids that do not all belong to the session.
	ErrTaskNotFound = errors.New("one or more tasks do not belong to the session")
	// ErrTaskNotPending signals a merge that includes a completed task.
	ErrTaskNotPending = errors.New("only pending tasks can be merged")
)

// Repository persists task sessions and their tasks.
type Repository interface {
	CreateSessionWithTasks(ctx context.Context, session *TaskSession) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*TaskSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TaskSession, error)
	CountSessions(ctx context.Context, userID uuid.UUID) (int, error)
	GetTaskWithOwner(ctx context.Context, taskID, userID uuid.UUID) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	ReorderTasks(ctx context.Context, sessionID, userID uuid.UUID, taskIDs []uuid.UUID) error
	MergeTasks(ctx context.Context, sessionID, userID uuid.UUID, taskIDs []uuid.UUID) (*Task, error)
	InsertFeedback(ctx context.Context, fb *Feedback) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed breakdown repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) CreateSessionWithTasks(ctx context.Context, session *TaskSession) error {
	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshalling context: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO task_sessions (id, user_id, goal, context)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, session.ID, session.UserID, session.Goal, contextJSON).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	for i := range session.Tasks {
		t := &session.Tasks[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO tasks (id, session_id, title, description, estimated_duration_minutes, priority, status, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`, t.ID, t.SessionID, t.Title, t.Description, t.EstimatedDuration, t.Priority, t.Status, t.Position).Scan(&t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting task %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetSession(ctx context.Context, sessionID uuid.UUID) (*TaskSession, error) {
	var s TaskSession
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, goal, context, promoted, created_at
		FROM task_sessions
		WHERE id = $1
	`, sessionID).Scan(&s.ID, &s.UserID, &s.Goal, &s.Context, &s.Promoted, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	tasks, err := r.tasksForSessions(ctx, []uuid.UUID{s.ID})
	if err != nil {
		return nil, err
	}
	s.Tasks = tasks[s.ID]

	var fb Feedback
	err = r.pool.QueryRow(ctx, `
		SELECT session_id, rating, comments, created_at
		FROM session_feedback
		WHERE session_id = $1
	`, s.ID).Scan(&fb.SessionID, &fb.Rating, &fb.Comments, &fb.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("fetching feedback: %w", err)
		}
	} else {
		s.Feedback = &fb
	}

	return &s, nil
}

func (r *postgresRepository) ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TaskSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, goal, context, promoted, created_at
		FROM task_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []TaskSession
	var ids []uuid.UUID
	for rows.Next() {
		var s TaskSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Goal, &s.Context, &s.Promoted, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	tasks, err := r.tasksForSessions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Tasks = tasks[sessions[i].ID]
	}
	return sessions, nil
}

func (r *postgresRepository) CountSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM task_sessions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) tasksForSessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, title, description, estimated_duration_minutes, priority, status, position, completed_at, created_at, updated_at
		FROM tasks
		WHERE session_id = ANY($1)
		ORDER BY session_id, position
	`, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[uuid.UUID][]Task, len(sessionIDs))
	for rows.Next() {
		var t Task
		err := rows.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.EstimatedDuration,
			&t.Priority, &t.Status, &t.Position, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks[t.SessionID] = append(tasks[t.SessionID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func (r *postgresRepository) GetTaskWithOwner(ctx context.Context, taskID, userID uuid.UUID) (*Task, error) {
	var t Task
	err := r.pool.QueryRow(ctx, `
		SELECT t.id, t.session_id, t.title, t.description, t.estimated_duration_minutes, t.priority, t.status, t.position, t.completed_at, t.created_at, t.updated_at
		FROM tasks t
		JOIN task_sessions s ON s.id = t.session_id
		WHERE t.id = $1 AND s.user_id = $2
	`, taskID, userID).Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.EstimatedDuration,
		&t.Priority, &t.Status, &t.Position, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching task: %w", err)
	}
	return &t, nil
}

func (r *postgresRepository) UpdateTask(ctx context.Context, task *Task) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, estimated_duration_minutes = $4, priority = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, task.ID, task.Title, task.Description, task.EstimatedDuration, task.Priority).Scan(&task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

func (r *postgresRepository) ReorderTasks(ctx context.Context, sessionID, userID uuid.UUID, taskIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT t.id
		FROM tasks t
		JOIN task_sessions s ON s.id = t.session_id
		WHERE t.session_id = $1 AND s.user_id = $2
		FOR UPDATE OF t
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("locking tasks: %w", err)
	}
	existing := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning task id: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating task ids: %w", err)
	}

	if len(taskIDs) != len(existing) {
		return ErrTaskSetMismatch
	}
	seen := make(map[uuid.UUID]bool, len(taskIDs))
	for _, id := range taskIDs {
		if !existing[id] || seen[id] {
			return ErrTaskSetMismatch
		}
		seen[id] = true
	}

	for pos, id := range taskIDs {
		_, err := tx.Exec(ctx, `UPDATE tasks SET position = $2, updated_at = now() WHERE id = $1`, id, pos)
		if err != nil {
			return fmt.Errorf("repositioning task: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) MergeTasks(ctx context.Context, sessionID, userID uuid.UUID, taskIDs []uuid.UUID) (*Task, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT t.id, t.title, t.description, t.estimated_duration_minutes, t.priority, t.status, t.position
		FROM tasks t
		JOIN task_sessions s ON s.id = t.session_id
		WHERE t.session_id = $1 AND s.user_id = $2 AND t.id = ANY($3)
		ORDER BY t.position
		FOR UPDATE OF t
	`, sessionID, userID, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("locking tasks: %w", err)
	}

	type mergeRow struct {
		title       string
		description string
		duration    int
		priority    Priority
		status      TaskStatus
		position    int
	}
	var parts []mergeRow
	for rows.Next() {
		var id uuid.UUID
		var m mergeRow
		if err := rows.Scan(&id, &m.title, &m.description, &m.duration, &m.priority, &m.status, &m.position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		parts = append(parts, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	if len(parts) != len(taskIDs) {
		return nil, ErrTaskNotFound
	}
	titles := make([]string, 0, len(parts))
	descriptions := make([]string, 0, len(parts))
	total := 0
	highest := PriorityLow
	position := parts[0].position
	for _, p := range parts {
		if p.status != StatusPending {
			return nil, ErrTaskNotPending
		}
		titles = append(titles, p.title)
		if p.description != "" {
			descriptions = append(descriptions, p.description)
		}
		total += p.duration
		if priorityRank(p.priority) > priorityRank(highest) {
			highest = p.priority
		}
	}

	merged := &Task{
		ID:                uuid.New(),
		SessionID:         sessionID,
		Title:             strings.Join(titles, " + "),
		Description:       strings.Join(descriptions, " "),
		EstimatedDuration: clampDuration(total),
		Priority:          highest,
		Status:            StatusPending,
		Position:          position,
	}

	_, err = tx.Exec(ctx, `DELETE FROM tasks WHERE id = ANY($1)`, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("deleting merged tasks: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (id, session_id, title, description, estimated_duration_minutes, priority, status, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, merged.ID, merged.SessionID, merged.Title, merged.Description, merged.EstimatedDuration,
		merged.Priority, merged.Status, merged.Position).Scan(&merged.CreatedAt, &merged.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting merged task: %w", err)
	}

	// Survivors keep their relative order; positions become dense again.
	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) - 1 AS new_position
			FROM tasks
			WHERE session_id = $1
		)
		UPDATE tasks
		SET position = ordered.new_position, updated_at = now()
		FROM ordered
		WHERE tasks.id = ordered.id AND tasks.position <> ordered.new_position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("re-densifying positions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	// Re-read the final position in case densification moved the merged task.
	err = r.pool.QueryRow(ctx, `SELECT position FROM tasks WHERE id = $1`, merged.ID).Scan(&merged.Position)
	if err != nil {
		return nil, fmt.Errorf("fetching merged position: %w", err)
	}
	return merged, nil
}

func (r *postgresRepository) InsertFeedback(ctx context.Context, fb *Feedback) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO session_feedback (session_id, rating, comments)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, fb.SessionID, fb.Rating, fb.Comments).Scan(&fb.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrFeedbackExists
		}
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}
