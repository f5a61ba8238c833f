package retrieval

import (
	"context"
)

// DefaultTopK is the number of passages returned per search.
const DefaultTopK = 3

// Passage is one chunk of a legal document.
type Passage struct {
	Source     string
	ChunkIndex int
	Content    string
	Embedding  []float32
	// Score is the similarity to the query, set by Search only.
	Score float64
}

// Retriever returns the passages most relevant to a query, best first.
type Retriever interface {
	Search(ctx context.Context, query string) ([]Passage, error)
}

// Store is a Retriever that can also be populated.
type Store interface {
	Retriever
	// Upsert replaces all passages of source with the given ones.
	Upsert(ctx context.Context, source string, passages []Passage) error
	DeleteSource(ctx context.Context, source string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Unavailable is the retriever used when no index is configured.
type Unavailable struct{}

func (Unavailable) Search(context.Context, string) ([]Passage, error) {
	return nil, nil
}

// Available reports whether r is backed by a real index.
func Available(r Retriever) bool {
	switch r.(type) {
	case nil, Unavailable, *Unavailable:
		return false
	default:
		return true
	}
}

func topK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	return k
}
