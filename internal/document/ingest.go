package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
)

// Ingestor chunks uploaded text, embeds each chunk and stores the batch.
type Ingestor struct {
	chunker  *Chunker
	repo     Repository
	provider llm.Provider
	cfg      *config.Config
}

// NewIngestor builds an ingestor from the configured chunker limits.
func NewIngestor(repo Repository, provider llm.Provider, cfg *config.Config) *Ingestor {
	return &Ingestor{
		chunker:  NewChunker(cfg.MaxChunkSize, cfg.MinChunkSize, cfg.ChunkOverlap),
		repo:     repo,
		provider: provider,
		cfg:      cfg,
	}
}

// IngestText chunks and indexes one parsed document. The document language
// falls back to the configured default when empty. Chunks are stored even
// when embedding fails; retrieval then degrades to keyword scoring.
func (g *Ingestor) IngestText(ctx context.Context, fileName, mime, content string, contentType ContentType, language string) (*Document, error) {
	if content == "" {
		return nil, fmt.Errorf("document %s is empty", fileName)
	}
	if language == "" {
		language = g.cfg.DefaultLanguage
	}

	doc := &Document{
		ID:         uuid.NewString(),
		FileName:   fileName,
		Mime:       mime,
		Language:   language,
		UploadedAt: time.Now(),
	}

	spans := g.chunker.Split(content)
	chunks := make([]Chunk, len(spans))
	texts := make([]string, len(spans))
	for i, span := range spans {
		chunks[i] = Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			Index:       i,
			Content:     span.Text,
			Start:       span.Start,
			End:         span.End,
			ContentType: contentType,
			Language:    language,
			CreatedAt:   time.Now(),
		}
		texts[i] = span.Text
	}

	vecs, err := g.provider.GenerateEmbeddingsBatch(ctx, texts)
	if err != nil {
		log.WithError(err).Warnf("embedding failed for %s, indexing without vectors", fileName)
	} else {
		for i := range chunks {
			chunks[i].Embedding = vecs[i]
		}
	}

	if err := g.repo.UpsertBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", fileName, err)
	}

	doc.ChunkCount = len(chunks)
	log.Infof("indexed %s: %d chunks", fileName, len(chunks))
	return doc, nil
}

// DeleteDocument removes a document and all of its chunks.
func (g *Ingestor) DeleteDocument(ctx context.Context, docID string) error {
	return g.repo.DeleteByDocument(ctx, docID)
}
