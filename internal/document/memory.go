package document

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository is the in-memory reference Repository. All methods are
// safe for concurrent use.
type MemoryRepository struct {
	mu     sync.RWMutex
	chunks map[string]Chunk // by chunk id
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{chunks: make(map[string]Chunk)}
}

// Upsert inserts or replaces one chunk.
func (r *MemoryRepository) Upsert(ctx context.Context, chunk Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[chunk.ID] = chunk
	return nil
}

// UpsertBatch inserts or replaces many chunks.
func (r *MemoryRepository) UpsertBatch(ctx context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.chunks[c.ID] = c
	}
	return nil
}

// VectorSearch iterates all candidates and ranks by cosine similarity.
func (r *MemoryRepository) VectorSearch(ctx context.Context, queryVec []float32, k int, filter Filter) ([]Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Match
	for _, c := range r.chunks {
		if c.Embedding == nil || !filter.Matches(&c) {
			continue
		}
		matches = append(matches, Match{Chunk: c, Similarity: Cosine(queryVec, c.Embedding)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// TextSearch returns chunks containing any of the lowercased tokens.
func (r *MemoryRepository) TextSearch(ctx context.Context, tokens []string, filter Filter) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Chunk
	for _, c := range r.chunks {
		if !filter.Matches(&c) {
			continue
		}
		content := strings.ToLower(c.Content)
		for _, tok := range tokens {
			if strings.Contains(content, tok) {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByDocument removes a document's chunks atomically.
func (r *MemoryRepository) DeleteByDocument(ctx context.Context, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.chunks {
		if c.DocumentID == docID {
			delete(r.chunks, id)
		}
	}
	return nil
}

// ClearAll wipes the index.
func (r *MemoryRepository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = make(map[string]Chunk)
	return nil
}

// GetAll returns every chunk sorted by id.
func (r *MemoryRepository) GetAll(ctx context.Context) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Chunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
