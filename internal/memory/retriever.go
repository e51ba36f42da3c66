package memory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/embedding"
	"github.com/epochish/klarita/internal/metrics"
)

// Retriever finds past sessions relevant to a new goal. Retrieval never
// fails a breakdown: any embedder or corpus error degrades to zero memories.
type Retriever struct {
	repo          Repository
	embedder      embedding.Embedder
	minSimilarity float64
}

// NewRetriever creates a retriever with the configured similarity floor.
func NewRetriever(repo Repository, embedder embedding.Embedder, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{
		repo:          repo,
		embedder:      embedder,
		minSimilarity: cfg.MinSimilarity,
	}
}

// Retrieve returns up to k memories, most relevant first. Two passes: the
// first restricted to memories sharing the request's time-of-day or mood,
// the second unrestricted. First-pass results take priority in the merge;
// duplicates are removed by id. A cold-start corpus yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, userID uuid.UUID, goal string, reqCtx Context, k int) []Memory {
	if k < 1 {
		return nil
	}

	vec, err := r.embedder.Embed(ctx, goal)
	if err != nil {
		slog.Warn("retrieval degraded to zero memories", "error", err, "user_id", userID)
		metrics.RetrievalFallbacksTotal.Inc()
		return nil
	}

	base := SimilarityQuery{
		UserID:         userID,
		Embedding:      vec,
		EmbeddingModel: r.embedder.Model(),
		Limit:          k,
		MinSimilarity:  r.minSimilarity,
	}

	contextPass := base
	contextPass.MatchContext = &reqCtx
	first, err := r.repo.SearchSimilar(ctx, contextPass)
	if err != nil {
		slog.Warn("retrieval degraded to zero memories", "error", err, "user_id", userID)
		metrics.RetrievalFallbacksTotal.Inc()
		return nil
	}

	merged := make([]Memory, 0, k)
	seen := make(map[uuid.UUID]struct{}, k)
	appendResults := func(results []SearchResult) {
		for _, res := range results {
			if len(merged) == k {
				return
			}
			if _, ok := seen[res.Memory.ID]; ok {
				continue
			}
			seen[res.Memory.ID] = struct{}{}
			merged = append(merged, res.Memory)
		}
	}

	appendResults(first)

	if len(merged) < k {
		second, err := r.repo.SearchSimilar(ctx, base)
		if err != nil {
			slog.Warn("unfiltered retrieval pass failed, keeping context-matched results", "error", err, "user_id", userID)
		} else {
			appendResults(second)
		}
	}

	return merged
}
