package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLock(t *testing.T) *PromotionLock {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPromotionLock(client)
}

func newTestWriter(t *testing.T, corpus Repository) *Writer {
	t.Helper()
	return NewWriter(corpus, &stubEmbedder{vec: []float32{0.1, 0.2}}, setupLock(t), nil)
}

func TestWriter_CommitCreatesMemory(t *testing.T) {
	corpus := newFakeCorpus()
	w := newTestWriter(t, corpus)

	req := CommitRequest{
		SessionID:       uuid.New(),
		UserID:          uuid.New(),
		Goal:            "plan my vacation",
		Context:         Context{TimeOfDay: "morning", Mood: "motivated"},
		CompletedTitles: []string{"Book flights", "Reserve hotel"},
		Rating:          5,
	}

	mem, err := w.Commit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, mem)

	assert.Equal(t, req.SessionID, mem.SessionID)
	assert.Equal(t, req.Goal, mem.GoalText)
	assert.Equal(t, req.CompletedTitles, mem.TaskTitles)
	assert.Equal(t, 5, mem.OutcomeRating)
	assert.Equal(t, "test-embedding-001", mem.EmbeddingModel)
	assert.Equal(t, []float32{0.1, 0.2}, mem.Embedding)
}

func TestWriter_CommitIdempotent(t *testing.T) {
	corpus := newFakeCorpus()
	w := newTestWriter(t, corpus)

	req := CommitRequest{
		SessionID: uuid.New(),
		UserID:    uuid.New(),
		Goal:      "plan my vacation",
		Context:   Context{TimeOfDay: "morning"},
		Rating:    4,
	}

	first, err := w.Commit(context.Background(), req)
	require.NoError(t, err)
	second, err := w.Commit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "re-commit must return the same memory")
	assert.Len(t, corpus.bySession, 1, "corpus grows by exactly one row")
}

func TestWriter_RejectsOutOfRangeRating(t *testing.T) {
	w := newTestWriter(t, newFakeCorpus())

	for _, rating := range []int{0, -1, 6} {
		_, err := w.Commit(context.Background(), CommitRequest{
			SessionID: uuid.New(),
			Rating:    rating,
		})
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", rating)
	}
}

func TestWriter_LockContention(t *testing.T) {
	corpus := newFakeCorpus()
	lock := setupLock(t)
	w := NewWriter(corpus, &stubEmbedder{vec: []float32{0.1}}, lock, nil)

	sessionID := uuid.New()
	acquired, err := lock.Acquire(context.Background(), sessionID)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = w.Commit(context.Background(), CommitRequest{
		SessionID: sessionID,
		UserID:    uuid.New(),
		Goal:      "goal",
		Context:   Context{TimeOfDay: "morning"},
		Rating:    4,
	})
	assert.ErrorIs(t, err, ErrPromotionInProgress)
}

func TestWriter_ConstraintBackstopReturnsExisting(t *testing.T) {
	corpus := newFakeCorpus()
	w := newTestWriter(t, corpus)

	sessionID := uuid.New()
	existing := &Memory{ID: uuid.New(), SessionID: sessionID, GoalText: "goal"}
	corpus.bySession[sessionID] = existing
	// Simulate a racing writer: first existence check misses, insert hits
	// the unique constraint.
	corpus.hideOnFirst = true

	mem, err := w.Commit(context.Background(), CommitRequest{
		SessionID: sessionID,
		UserID:    uuid.New(),
		Goal:      "goal",
		Context:   Context{TimeOfDay: "morning"},
		Rating:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, mem.ID)
	assert.Len(t, corpus.bySession, 1)
}
