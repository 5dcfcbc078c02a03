package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/conversation"
	"github.com/byerlikaya/SmartRAG-sub011/internal/document"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/merge"
	"github.com/byerlikaya/SmartRAG-sub011/internal/sqlgen"
)

var log = logger.Component("synthesis")

// NotFoundMessage is the canonical reply when the context cannot answer
// the question.
const NotFoundMessage = "I could not find the answer to your question"

// Source records where part of an answer came from.
type Source struct {
	SourceType string   `json:"sourceType"` // database, document, audio, image, system
	Identifier string   `json:"identifier"`
	Content    string   `json:"content,omitempty"`
	Score      float64  `json:"score,omitempty"`
	SQL        string   `json:"sql,omitempty"`
	RowCount   int      `json:"rowCount,omitempty"`
	Tables     []string `json:"tables,omitempty"`
}

// Answer is the final result handed back to the caller.
type Answer struct {
	Query      string    `json:"query"`
	Text       string    `json:"text"`
	Sources    []Source  `json:"sources,omitempty"`
	SearchedAt time.Time `json:"searchedAt"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}

// Synthesizer turns collected evidence into a grounded natural-language
// answer.
type Synthesizer struct {
	provider llm.Provider
	cfg      *config.Config
}

// NewSynthesizer builds a synthesizer over the provider.
func NewSynthesizer(provider llm.Provider, cfg *config.Config) *Synthesizer {
	return &Synthesizer{provider: provider, cfg: cfg}
}

// Synthesize asks the AI for an answer grounded strictly in the evidence.
// An empty evidence set short-circuits to the not-found message.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, history []conversation.Turn,
	outcome *merge.Outcome, chunks []document.ScoredChunk, language string) (*Answer, error) {

	answer := &Answer{Query: query, SearchedAt: time.Now()}
	answer.Sources = buildSources(outcome, chunks)

	evidence := buildEvidence(outcome, chunks)
	if strings.TrimSpace(evidence) == "" {
		answer.Text = NotFoundMessage
		return answer, nil
	}

	prompt := s.buildPrompt(query, history, evidence, language)
	text, err := s.provider.GenerateResponse(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}

	text = stripSQL(strings.TrimSpace(text))
	if text == "" || strings.Contains(text, NotFoundMessage) {
		answer.Text = NotFoundMessage
		answer.Sources = nil
		return answer, nil
	}
	answer.Text = text
	return answer, nil
}

func (s *Synthesizer) buildPrompt(query string, history []conversation.Turn, evidence, language string) string {
	if language == "" {
		language = s.cfg.DefaultLanguage
	}

	var sb strings.Builder
	sb.WriteString("Answer the question using ONLY the context below.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(evidence)
	sb.WriteString("\n\n")

	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	sb.WriteString("Rules:\n")
	sb.WriteString("- Use only facts present in the context. Never invent values.\n")
	sb.WriteString("- Never include SQL statements or code blocks in the answer.\n")
	fmt.Fprintf(&sb, "- If the context does not contain the answer, reply exactly: %s\n", NotFoundMessage)
	if language != "" {
		fmt.Fprintf(&sb, "- Respond in %s.\n", language)
	}
	sb.WriteString("\nAnswer:")
	return sb.String()
}

// buildEvidence concatenates database evidence and document chunks into
// one context block.
func buildEvidence(outcome *merge.Outcome, chunks []document.ScoredChunk) string {
	var parts []string
	if outcome != nil {
		if block := outcome.Evidence(); block != "" {
			parts = append(parts, block)
		}
	}
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("=== Document excerpt %d (score %.2f) ===\n%s", i+1, c.Score, c.Chunk.Content))
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(outcome *merge.Outcome, chunks []document.ScoredChunk) []Source {
	var sources []Source
	if outcome != nil {
		for _, r := range outcome.Results {
			if !r.Success {
				continue
			}
			sources = append(sources, Source{
				SourceType: "database",
				Identifier: r.DatabaseID,
				SQL:        r.SQL,
				RowCount:   r.RowCount,
				Tables:     sqlgen.ExtractTables(r.SQL),
			})
		}
	}
	for _, c := range chunks {
		sources = append(sources, Source{
			SourceType: string(c.Chunk.ContentType),
			Identifier: c.Chunk.DocumentID,
			Content:    snippet(c.Chunk.Content, 200),
			Score:      c.Score,
		})
	}
	return sources
}

var (
	sqlFenceRe = regexp.MustCompile("(?s)```(?:sql)?\n?.*?```")
	sqlLineRe  = regexp.MustCompile(`(?im)^\s*SELECT\b[^\n]*$`)
)

// stripSQL removes SQL the AI leaked into the answer despite the prompt.
func stripSQL(text string) string {
	cleaned := sqlFenceRe.ReplaceAllString(text, "")
	cleaned = sqlLineRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != text {
		log.Debug("stripped SQL from generated answer")
	}
	return cleaned
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
