package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
)

type stubProvider struct {
	embed func(text string) ([]float32, error)
}

func (s *stubProvider) GenerateResponse(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	return "", nil
}

func (s *stubProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return s.embed(text)
}

func (s *stubProvider) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubProvider) Name() string { return "stub" }

func searchConfig() *config.Config {
	return &config.Config{
		SemanticScoringWeight:        0.8,
		KeywordScoringWeight:         0.2,
		SemanticSearchThreshold:      0.3,
		StrongDocumentMatchThreshold: 4.8,
		MinSearchResults:             1,
		MaxSearchResults:             10,
	}
}

func seedRepo(t *testing.T, chunks ...Chunk) *MemoryRepository {
	t.Helper()
	repo := NewMemoryRepository()
	require.NoError(t, repo.UpsertBatch(context.Background(), chunks))
	return repo
}

func TestSearchRanksHybridScore(t *testing.T) {
	repo := seedRepo(t,
		Chunk{ID: "a", Content: "solar panels convert sunlight into electricity", Embedding: []float32{1, 0}, ContentType: TypeDocument},
		Chunk{ID: "b", Content: "cooking pasta requires salted water", Embedding: []float32{0, 1}, ContentType: TypeDocument},
	)
	provider := &stubProvider{embed: func(string) ([]float32, error) { return []float32{1, 0}, nil }}
	s := NewSearcher(repo, provider, searchConfig())

	res, err := s.Search(context.Background(), "solar panels", 0, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1, "unrelated chunk should fall below the threshold")
	assert.Equal(t, "a", res.Chunks[0].Chunk.ID)
	assert.True(t, res.Strong, "perfect semantic and keyword match should be strong")
	assert.False(t, res.Degraded)
	assert.Greater(t, res.Chunks[0].Score, res.Chunks[0].Semantic,
		"keyword component and bonuses should lift the score above raw similarity")
}

func TestSearchAdaptiveThresholdRelaxes(t *testing.T) {
	// Cosine 0.25 gives a hybrid score of 0.2: below the 0.3 threshold but
	// above its floor of 0.15.
	repo := seedRepo(t,
		Chunk{ID: "c", Content: "entirely unrelated paragraph", Embedding: []float32{0.25, 0.9682458}, ContentType: TypeDocument},
	)
	provider := &stubProvider{embed: func(string) ([]float32, error) { return []float32{1, 0}, nil }}
	s := NewSearcher(repo, provider, searchConfig())

	res, err := s.Search(context.Background(), "solar panels", 0, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1, "threshold should relax to admit the minimum result count")
	assert.False(t, res.Strong)
	assert.InDelta(t, 0.2, res.Chunks[0].Score, 0.01)
}

func TestSearchClampsNegativeSimilarity(t *testing.T) {
	// Anti-correlated embedding with a full keyword match: the keyword
	// component must survive with a non-negative score.
	repo := seedRepo(t,
		Chunk{ID: "n", Content: "solar panels", Embedding: []float32{-1, 0}, ContentType: TypeDocument},
	)
	provider := &stubProvider{embed: func(string) ([]float32, error) { return []float32{1, 0}, nil }}
	s := NewSearcher(repo, provider, searchConfig())

	res, err := s.Search(context.Background(), "solar panels", 0, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Negative(t, res.Chunks[0].Semantic)
	assert.GreaterOrEqual(t, res.Chunks[0].Score, searchConfig().KeywordScoringWeight)
}

func TestSearchDegradesToKeywordsOnEmbeddingFailure(t *testing.T) {
	repo := seedRepo(t,
		Chunk{ID: "a", Content: "solar panels on the roof", ContentType: TypeDocument},
		Chunk{ID: "b", Content: "nothing relevant here", ContentType: TypeDocument},
	)
	provider := &stubProvider{embed: func(string) ([]float32, error) { return nil, errors.New("provider down") }}
	s := NewSearcher(repo, provider, searchConfig())

	res, err := s.Search(context.Background(), "solar panels", 0, Filter{})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "a", res.Chunks[0].Chunk.ID)
	assert.Zero(t, res.Chunks[0].Semantic)
	assert.Equal(t, res.Chunks[0].Keyword, res.Chunks[0].Score)
}

func TestSearchHonorsContentTypeFilter(t *testing.T) {
	repo := seedRepo(t,
		Chunk{ID: "doc", Content: "solar panels explained", Embedding: []float32{1, 0}, ContentType: TypeDocument},
		Chunk{ID: "aud", Content: "solar panels podcast transcript", Embedding: []float32{1, 0}, ContentType: TypeAudio},
	)
	provider := &stubProvider{embed: func(string) ([]float32, error) { return []float32{1, 0}, nil }}
	s := NewSearcher(repo, provider, searchConfig())

	res, err := s.Search(context.Background(), "solar panels", 0, Filter{ContentTypes: []ContentType{TypeAudio}})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "aud", res.Chunks[0].Chunk.ID)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"solar", "panel", "efficiency"},
		Tokenize("What is the Solar-Panel's efficiency?"))
	assert.Empty(t, Tokenize("what is the"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}), "mismatched dimensions score zero")
	assert.Zero(t, Cosine(nil, nil))
}
