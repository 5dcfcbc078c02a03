package document

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
)

var log = logger.Component("document")

// strongMatchScale maps the configured strong-match threshold (expressed on
// the legacy pre-normalized scoring scale, default 4.8) onto the 0..1
// hybrid score range.
const strongMatchScale = 6.0

// candidatePoolFactor widens the vector candidate set beyond maxResults so
// keyword re-ranking has room to work.
const candidatePoolFactor = 3

// SearchResult is the outcome of one retrieval pass.
type SearchResult struct {
	Chunks   []ScoredChunk
	Strong   bool // top hit cleared the strong-match threshold
	Degraded bool // embedding failed, keyword-only scoring was used
}

// Searcher ranks chunks by a hybrid semantic + keyword score with an
// adaptive threshold.
type Searcher struct {
	repo     Repository
	provider llm.Provider
	cfg      *config.Config
}

// NewSearcher builds a searcher over the repository and embedding provider.
func NewSearcher(repo Repository, provider llm.Provider, cfg *config.Config) *Searcher {
	return &Searcher{repo: repo, provider: provider, cfg: cfg}
}

// Search returns up to maxResults chunks ranked by hybrid score. On
// embedding failure it falls back to keyword-only scoring over the text
// index and marks the result degraded.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int, filter Filter) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = s.cfg.MaxSearchResults
	}
	queryTokens := Tokenize(query)

	queryVec, err := s.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("embedding failed, using keyword-only scoring")
		return s.keywordOnly(ctx, queryTokens, maxResults, filter)
	}

	matches, err := s.repo.VectorSearch(ctx, queryVec, maxResults*candidatePoolFactor, filter)
	if err != nil {
		return nil, err
	}

	scored := s.scoreCandidates(query, queryTokens, matches)
	scored = s.applyAdaptiveThreshold(scored, maxResults)

	return &SearchResult{
		Chunks: scored,
		Strong: len(scored) > 0 && scored[0].Score >= s.strongThreshold(),
	}, nil
}

func (s *Searcher) strongThreshold() float64 {
	return s.cfg.StrongDocumentMatchThreshold / strongMatchScale
}

// scoreCandidates computes the hybrid score for every vector candidate:
// weighted semantic + keyword, then multiplicative coherence and proximity
// bonuses.
func (s *Searcher) scoreCandidates(query string, queryTokens []string, matches []Match) []ScoredChunk {
	rarity := tokenRarity(queryTokens, matches)

	scored := make([]ScoredChunk, 0, len(matches))
	for _, m := range matches {
		kw := keywordScore(queryTokens, m.Chunk.Content, rarity)
		// Anti-correlated vectors must not drag the score below zero and
		// cancel a keyword match.
		sem := m.Similarity
		if sem < 0 {
			sem = 0
		}
		score := s.cfg.SemanticScoringWeight*sem + s.cfg.KeywordScoringWeight*kw

		content := strings.ToLower(m.Chunk.Content)
		if hasSemanticCoherence(queryTokens, content) {
			score *= coherenceBonus
		}
		if containsContextualKeywords(queryTokens, content) {
			score *= proximityBonus
		}

		scored = append(scored, ScoredChunk{
			Chunk:    m.Chunk,
			Score:    score,
			Semantic: m.Similarity,
			Keyword:  kw,
		})
	}
	sortScored(scored)
	return scored
}

// keywordOnly is the degraded path: candidates come from the text index and
// the keyword component carries the full weight.
func (s *Searcher) keywordOnly(ctx context.Context, queryTokens []string, maxResults int, filter Filter) (*SearchResult, error) {
	candidates, err := s.repo.TextSearch(ctx, queryTokens, filter)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		kw := keywordScore(queryTokens, c.Content, nil)
		scored = append(scored, ScoredChunk{Chunk: c, Score: kw, Keyword: kw})
	}
	sortScored(scored)
	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}

	return &SearchResult{Chunks: scored, Degraded: true}, nil
}

// applyAdaptiveThreshold admits chunks above the configured threshold,
// relaxing it stepwise toward half the configured value when fewer than
// MinSearchResults pass.
func (s *Searcher) applyAdaptiveThreshold(scored []ScoredChunk, maxResults int) []ScoredChunk {
	threshold := s.cfg.SemanticSearchThreshold
	floor := threshold / 2

	var passing []ScoredChunk
	for _, th := range []float64{threshold, (threshold + floor) / 2, floor} {
		passing = passing[:0]
		for _, sc := range scored {
			if sc.Score >= th {
				passing = append(passing, sc)
			}
		}
		if len(passing) >= s.cfg.MinSearchResults {
			break
		}
	}

	out := make([]ScoredChunk, len(passing))
	copy(out, passing)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// Bonus factors for the multiplicative scoring adjustments.
const (
	coherenceBonus = 1.15 // query tokens appear in near order
	proximityBonus = 1.1  // multiple query terms appear close together
	proximityRunes = 60
)

// keywordScore is the length-normalized overlap of query tokens against the
// chunk text, with a bonus for matching rare tokens. rarity may be nil.
func keywordScore(queryTokens []string, content string, rarity map[string]float64) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	chunkTokens := tokenSet(Tokenize(content))

	matched := 0
	bonus := 0.0
	for _, qt := range queryTokens {
		if _, ok := chunkTokens[qt]; !ok {
			continue
		}
		matched++
		if rarity != nil {
			bonus += 0.1 * rarity[qt]
		}
	}
	return float64(matched)/float64(len(queryTokens)) + bonus
}

// tokenRarity scores each query token by how few candidates contain it, so
// matches on rare tokens count for more. Range (0, 1].
func tokenRarity(queryTokens []string, matches []Match) map[string]float64 {
	if len(matches) == 0 {
		return nil
	}
	rarity := make(map[string]float64, len(queryTokens))
	for _, qt := range queryTokens {
		containing := 0
		for _, m := range matches {
			if strings.Contains(strings.ToLower(m.Chunk.Content), qt) {
				containing++
			}
		}
		rarity[qt] = 1 - float64(containing)/float64(len(matches)+1)
	}
	return rarity
}

// hasSemanticCoherence reports whether the query tokens appear in the chunk
// in the same relative order.
func hasSemanticCoherence(queryTokens []string, content string) bool {
	if len(queryTokens) < 2 {
		return false
	}
	pos := 0
	found := 0
	for _, qt := range queryTokens {
		idx := strings.Index(content[pos:], qt)
		if idx < 0 {
			continue
		}
		pos += idx + len(qt)
		found++
	}
	return found >= 2 && found == len(queryTokens)
}

// containsContextualKeywords reports whether at least two distinct query
// tokens occur within a short window of each other.
func containsContextualKeywords(queryTokens []string, content string) bool {
	type hit struct {
		pos   int
		token string
	}
	var hits []hit
	for _, qt := range queryTokens {
		if idx := strings.Index(content, qt); idx >= 0 {
			hits = append(hits, hit{pos: idx, token: qt})
		}
	}
	if len(hits) < 2 {
		return false
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	for i := 1; i < len(hits); i++ {
		if hits[i].pos-hits[i-1].pos <= proximityRunes {
			return true
		}
	}
	return false
}

// Tokenize lowercases and splits on non-alphanumeric runes, dropping
// one-letter fragments and stopwords.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// sortScored orders by score descending, breaking ties by chunk id for
// deterministic output.
func sortScored(scored []ScoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"was": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "with": true, "how": true, "do": true, "does": true,
}
