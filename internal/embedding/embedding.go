package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/epochish/klarita/internal/config"
)

// Embedder converts text into a fixed-dimension vector. All memories in the
// corpus carry the model tag of the embedder that produced them, so vectors
// from different models are never compared.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
	Model() string
}

// GeminiEmbedder implements Embedder against the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGeminiEmbedder creates an embedder for the configured model and dimensionality.
func NewGeminiEmbedder(client *genai.Client, cfg config.LLMConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		client: client,
		model:  cfg.EmbeddingModel,
		dims:   cfg.EmbeddingDims,
	}
}

// Embed returns the embedding vector for text. A vector of the wrong length
// is an error before it ever reaches the corpus.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding empty text")
	}

	cfg := &genai.EmbedContentConfig{}
	if e.dims > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.dims))
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding response contained no values")
	}

	vec := resp.Embeddings[0].Values
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), e.dims)
	}
	return vec, nil
}

// Dims returns the configured vector dimensionality.
func (e *GeminiEmbedder) Dims() int {
	return e.dims
}

// Model returns the embedding model identifier.
func (e *GeminiEmbedder) Model() string {
	return e.model
}
