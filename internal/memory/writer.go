package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/embedding"
	"github.com/epochish/klarita/internal/metrics"
	inats "github.com/epochish/klarita/internal/nats"
)

// ErrInvalidRating is returned for a rating outside [1,5].
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// ErrPromotionInProgress is returned when another writer holds the session's
// lock and no memory row exists yet. Callers may simply retry.
var ErrPromotionInProgress = errors.New("promotion already in progress")

// CommitRequest carries everything the writer snapshots into a Memory. Only
// titles of tasks the user actually completed belong in CompletedTitles.
type CommitRequest struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	Goal            string
	Context         Context
	CompletedTitles []string
	Rating          int
}

// Writer promotes rated sessions into the corpus. Commit is idempotent per
// session: a re-commit returns the existing Memory and the corpus grows by
// exactly one row per session.
type Writer struct {
	repo     Repository
	embedder embedding.Embedder
	lock     *PromotionLock
	events   *inats.Publisher
}

// NewWriter creates a memory writer.
func NewWriter(repo Repository, embedder embedding.Embedder, lock *PromotionLock, events *inats.Publisher) *Writer {
	return &Writer{
		repo:     repo,
		embedder: embedder,
		lock:     lock,
		events:   events,
	}
}

// Commit embeds the session goal and inserts the memory snapshot, holding
// the session's promotion lock for the duration.
func (w *Writer) Commit(ctx context.Context, req CommitRequest) (*Memory, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, req.Rating)
	}

	existing, err := w.repo.GetBySessionID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	acquired, err := w.lock.Acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// Another writer owns the session; it either finished already or
		// will shortly.
		existing, err := w.repo.GetBySessionID(ctx, req.SessionID)
		if err == nil && existing != nil {
			return existing, nil
		}
		return nil, ErrPromotionInProgress
	}
	defer w.lock.Release(ctx, req.SessionID)

	vec, err := w.embedder.Embed(ctx, req.Goal)
	if err != nil {
		return nil, fmt.Errorf("embedding goal for promotion: %w", err)
	}

	mem := &Memory{
		ID:             uuid.New(),
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		GoalText:       req.Goal,
		Context:        req.Context,
		TaskTitles:     req.CompletedTitles,
		OutcomeRating:  req.Rating,
		Embedding:      vec,
		EmbeddingModel: w.embedder.Model(),
		CreatedAt:      time.Now(),
	}

	if err := w.repo.InsertPromoted(ctx, mem); err != nil {
		if errors.Is(err, ErrAlreadyPromoted) {
			if existing, getErr := w.repo.GetBySessionID(ctx, req.SessionID); getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	metrics.MemoriesPromotedTotal.Inc()

	if err := w.events.PublishMemoryPromoted(ctx, inats.MemoryPromotedEvent{
		MemoryID:  mem.ID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Timestamp: time.Now(),
	}); err != nil {
		slog.Warn("publishing memory promoted event", "error", err, "session_id", req.SessionID)
	}

	slog.Info("session promoted to memory",
		"session_id", req.SessionID,
		"memory_id", mem.ID,
		"rating", req.Rating,
	)
	return mem, nil
}
