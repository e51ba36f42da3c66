package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.vec, nil
}

func (c *countingEmbedder) Dims() int     { return len(c.vec) }
func (c *countingEmbedder) Model() string { return "test-embedding-001" }

func TestCachedEmbedder_ReadThrough(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cached.Embed(ctx, "plan my week")
	require.NoError(t, err)
	assert.Equal(t, inner.vec, first)
	assert.Equal(t, 1, inner.calls)

	second, err := cached.Embed(ctx, "plan my week")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "repeat embed should hit the cache")
}

func TestCachedEmbedder_DistinctTexts(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.5}}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = cached.Embed(ctx, "clean the garage")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "write the report")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("provider down")}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = cached.Embed(ctx, "plan my week")
	require.Error(t, err)

	inner.err = nil
	inner.vec = []float32{0.9}

	vec, err := cached.Embed(ctx, "plan my week")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9}, vec)
	assert.Equal(t, 2, inner.calls, "failed embed must not poison the cache")
}

func TestCachedEmbedder_DelegatesMetadata(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, 0.2}}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)

	assert.Equal(t, 2, cached.Dims())
	assert.Equal(t, "test-embedding-001", cached.Model())
}
