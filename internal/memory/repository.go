package memory

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
	pgvector "github.com/pgvector/pgvector-go"
)

// ErrAlreadyPromoted is returned when a session already has a memory row.
// The UNIQUE(session_id) constraint is the backstop behind the Redis lock.
var ErrAlreadyPromoted = errors.New("session already promoted")

// Repository defines corpus persistence operations. The corpus is
// append-only: there are no update or delete statements.
type Repository interface {
	InsertPromoted(ctx context.Context, mem *Memory) error
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*Memory, error)
	SearchSimilar(ctx context.Context, q SimilarityQuery) ([]SearchResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Memory, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgvector-backed corpus repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// InsertPromoted inserts the memory and flips the session's promoted flag in
// the same transaction, so a memory row and an unpromoted session can never
// coexist.
func (r *postgresRepository) InsertPromoted(ctx context.Context, mem *Memory) error {
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	if mem.TaskTitles == nil {
		mem.TaskTitles = []string{}
	}

	contextJSON, err := json.Marshal(mem.Context)
	if err != nil {
		return fmt.Errorf("marshaling context snapshot: %w", err)
	}
	titlesJSON, err := json.Marshal(mem.TaskTitles)
	if err != nil {
		return fmt.Errorf("marshaling task titles: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning promotion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO memories (id, user_id, session_id, goal_text, context, task_titles, outcome_rating, embedding, embedding_model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		mem.ID, mem.UserID, mem.SessionID, mem.GoalText, contextJSON, titlesJSON,
		mem.OutcomeRating, pgvector.NewVector(mem.Embedding), mem.EmbeddingModel,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyPromoted
		}
		return fmt.Errorf("inserting memory: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE task_sessions SET promoted = true WHERE id = $1 AND user_id = $2`,
		mem.SessionID, mem.UserID,
	)
	if err != nil {
		return fmt.Errorf("marking session promoted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing promotion tx: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*Memory, error) {
	query := `
		SELECT id, user_id, session_id, goal_text, context, task_titles, outcome_rating, embedding_model, created_at
		FROM memories WHERE session_id = $1`

	mem := &Memory{}
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&mem.ID, &mem.UserID, &mem.SessionID, &mem.GoalText, &mem.Context,
		&mem.TaskTitles, &mem.OutcomeRating, &mem.EmbeddingModel, &mem.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying memory by session: %w", err)
	}
	return mem, nil
}

// SearchSimilar runs one nearest-neighbour pass. The vector column is never
// selected back; equal distances tie-break on recency.
func (r *postgresRepository) SearchSimilar(ctx context.Context, q SimilarityQuery) ([]SearchResult, error) {
	vec := pgvector.NewVector(q.Embedding)

	conditions := []string{"user_id = $2", "embedding_model = $3", "1 - (embedding <=> $1) >= $4"}
	args := []any{vec, q.UserID, q.EmbeddingModel, q.MinSimilarity}
	argIdx := 5

	if q.MatchContext != nil {
		if q.MatchContext.Mood != "" {
			conditions = append(conditions,
				fmt.Sprintf("(context->>'time_of_day' = $%d OR context->>'mood' = $%d)", argIdx, argIdx+1))
			args = append(args, q.MatchContext.TimeOfDay, q.MatchContext.Mood)
			argIdx += 2
		} else {
			conditions = append(conditions, fmt.Sprintf("context->>'time_of_day' = $%d", argIdx))
			args = append(args, q.MatchContext.TimeOfDay)
			argIdx++
		}
	}

	query := fmt.Sprintf(
		`SELECT id, user_id, session_id, goal_text, context, task_titles, outcome_rating, embedding_model, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM memories
		 WHERE %s
		 ORDER BY embedding <=> $1, created_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, q.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching similar memories: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var m Memory
		var similarity float64
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.GoalText, &m.Context,
			&m.TaskTitles, &m.OutcomeRating, &m.EmbeddingModel, &m.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, SearchResult{Memory: m, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Memory, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, session_id, goal_text, context, task_titles, outcome_rating, embedding_model, created_at
		 FROM memories
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.GoalText, &m.Context,
			&m.TaskTitles, &m.OutcomeRating, &m.EmbeddingModel, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (r *postgresRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memories WHERE user_id = $1`,
		userID,
	).Scan(&count)
	return count, err
}
