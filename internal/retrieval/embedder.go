package retrieval

import (
	"context"
	"fmt"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingClient is the subset of llm.Client used for embeddings.
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// OpenAIEmbedder embeds through an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client EmbeddingClient
	model  string
}

func NewOpenAIEmbedder(client EmbeddingClient, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.client.Embed(ctx, e.model, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(texts), e.model, err)
	}
	return vectors, nil
}

func embedQuery(ctx context.Context, e Embedder, query string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	return vectors[0], nil
}
