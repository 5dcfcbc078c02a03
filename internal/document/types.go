package document

import (
	"time"
)

// ContentType tags the origin of a chunk.
type ContentType string

const (
	TypeDocument ContentType = "document"
	TypeAudio    ContentType = "audio"
	TypeImage    ContentType = "image"
	TypeDatabase ContentType = "database"
)

// Chunk is a contiguous fragment of a parsed document, the unit of indexing
// and retrieval. Ordinal indices within a document are contiguous from 0;
// the content type never changes after creation.
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	Content     string
	Start       int // rune offset within the original text
	End         int
	Embedding   []float32 // nil until embedded; length D when present
	ContentType ContentType
	Language    string // ISO 639-1 or empty
	CreatedAt   time.Time
}

// Document owns a contiguous sequence of chunks plus upload metadata.
// Deleting a document deletes all of its chunks.
type Document struct {
	ID         string
	FileName   string
	Mime       string
	Uploader   string
	Language   string
	UploadedAt time.Time
	ChunkCount int
}

// ScoredChunk is a retrieval hit with its hybrid score breakdown.
type ScoredChunk struct {
	Chunk    Chunk
	Score    float64
	Semantic float64
	Keyword  float64
}

// Filter narrows retrieval by content type. Empty means no filtering.
type Filter struct {
	ContentTypes []ContentType
}

// Matches reports whether a chunk passes the filter.
func (f Filter) Matches(c *Chunk) bool {
	if len(f.ContentTypes) == 0 {
		return true
	}
	for _, t := range f.ContentTypes {
		if c.ContentType == t {
			return true
		}
	}
	return false
}
