package document

import (
	"context"
)

// Match is one repository hit with cosine similarity.
type Match struct {
	Chunk      Chunk
	Similarity float64
}

// Repository is the pluggable chunk storage contract. Backends may be
// native vector stores or in-memory; the searcher treats them as
// thread-safe read interfaces.
type Repository interface {
	// Upsert inserts or replaces one chunk.
	Upsert(ctx context.Context, chunk Chunk) error

	// UpsertBatch inserts or replaces many chunks.
	UpsertBatch(ctx context.Context, chunks []Chunk) error

	// VectorSearch returns the top-k chunks by cosine similarity against
	// the query vector, honoring the filter.
	VectorSearch(ctx context.Context, queryVec []float32, k int, filter Filter) ([]Match, error)

	// TextSearch returns chunks containing any of the tokens, honoring the
	// filter. Used for keyword-only degraded retrieval.
	TextSearch(ctx context.Context, tokens []string, filter Filter) ([]Chunk, error)

	// DeleteByDocument removes a document's chunks atomically.
	DeleteByDocument(ctx context.Context, docID string) error

	// ClearAll wipes the index.
	ClearAll(ctx context.Context) error

	// GetAll returns every chunk; intended for in-memory sized deployments.
	GetAll(ctx context.Context) ([]Chunk, error)
}
