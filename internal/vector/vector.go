// Package vector queries the external semantic index for nodes whose
// documents resemble a search text. The registry never stores embeddings;
// it embeds the query, asks the index for nearest documents and maps them
// back to owning handles.
package vector

import (
	"context"

	"beacon/pkg/domain"
)

// Hit is one document returned by the index.
type Hit struct {
	DocumentID string
	Owner      string
	Distance   float64
}

// Match is a node-level result: the best-scoring document per owner.
type Match struct {
	Handle     domain.Handle
	DocumentID string
	Similarity float64
}

// Index is the approximate nearest neighbour store.
type Index interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]Hit, error)
	Health(ctx context.Context) error
}

// Embedder turns query text into an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
