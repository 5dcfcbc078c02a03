package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/byerlikaya/SmartRAG-sub011/internal/conversation"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

var log = logger.Component("intent")

// Analyzer decides whether a query should hit databases, documents, or
// both, and which tables each database target needs.
type Analyzer struct {
	provider llm.Provider
	registry *schema.Registry
}

// NewAnalyzer builds an analyzer over the provider and schema registry.
func NewAnalyzer(provider llm.Provider, registry *schema.Registry) *Analyzer {
	return &Analyzer{provider: provider, registry: registry}
}

// structured reply shape requested from the AI.
type reply struct {
	Databases []struct {
		Database string   `json:"database"`
		Tables   []string `json:"tables"`
		Purpose  string   `json:"purpose"`
		Priority int      `json:"priority"`
	} `json:"databases"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

// Analyze asks the AI for a structured intent, then validates it against
// the schema registry and selects the strategy by confidence.
func (a *Analyzer) Analyze(ctx context.Context, query string, history []conversation.Turn) (*Intent, error) {
	prompt := a.buildPrompt(query, history)

	response, err := a.provider.GenerateResponse(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("intent analysis failed: %w", err)
	}

	if strings.Contains(response, NoAnswerMarker) {
		return &Intent{Query: query, Strategy: DocumentOnly, NoAnswer: true}, nil
	}

	parsed, err := parseReply(response)
	if err != nil {
		log.WithError(err).Warn("unparseable intent reply, falling back to documents")
		return &Intent{Query: query, Strategy: DocumentOnly}, nil
	}

	in := &Intent{Query: query, Confidence: clamp01(parsed.Confidence)}
	for _, db := range parsed.Databases {
		in.Databases = append(in.Databases, DatabaseQueryIntent{
			DatabaseID: db.Database,
			Tables:     db.Tables,
			Purpose:    db.Purpose,
			Priority:   db.Priority,
		})
	}

	a.validate(in)
	in.Strategy = selectStrategy(in.Confidence, len(in.Databases) > 0)
	return in, nil
}

func (a *Analyzer) buildPrompt(query string, history []conversation.Turn) string {
	var sb strings.Builder
	sb.WriteString("You are a query routing expert. Decide which data sources can answer the question.\n\n")
	sb.WriteString("Available Databases:\n")
	sb.WriteString(a.registry.Summary())

	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n\n", query)
	sb.WriteString(`Task: Emit a JSON object with this exact shape and nothing else:
{"databases":[{"database":"<id>","tables":["<table>"],"purpose":"<short purpose>","priority":1}],"confidence":0.0,"strategy":"database_only|document_only|hybrid"}

Rules:
- Only list databases and tables shown above.
- confidence is your belief in [0,1] that databases hold the answer.
- Leave "databases" empty when the question is about document content.
- If the question cannot be answered from any source, output exactly: ` + NoAnswerMarker + "\n")
	return sb.String()
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseReply extracts the first JSON object from the AI output.
func parseReply(response string) (*reply, error) {
	raw := jsonBlockRe.FindString(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("invalid intent JSON: %w", err)
	}
	return &r, nil
}

// validate drops hallucinated tables, relocates tables that live in a
// different known database, flags non-English purposes, and removes
// database targets left with no tables.
func (a *Analyzer) validate(in *Intent) {
	relocated := make(map[string][]string) // databaseID -> exact table names

	kept := in.Databases[:0]
	for _, target := range in.Databases {
		var tables []string
		for _, table := range target.Tables {
			if exact, ok := a.registry.HasTable(target.DatabaseID, table); ok {
				tables = append(tables, exact)
				continue
			}
			// Requested table exists in a different known database.
			if dbID, exact, ok := a.registry.FindTable(table); ok {
				log.Debugf("relocating table %s from %s to %s", table, target.DatabaseID, dbID)
				relocated[dbID] = append(relocated[dbID], exact)
				continue
			}
			log.Debugf("dropping unknown table %s (database %s)", table, target.DatabaseID)
		}
		if len(tables) == 0 {
			continue
		}
		target.Tables = tables
		target.NonEnglishHint = hasNonEnglish(target.Purpose) || anyNonEnglish(tables)
		kept = append(kept, target)
	}
	in.Databases = kept

	// Fold relocated tables into their owning database's target.
	ids := make([]string, 0, len(relocated))
	for id := range relocated {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a.addTables(in, id, relocated[id])
	}
}

func (a *Analyzer) addTables(in *Intent, databaseID string, tables []string) {
	for i := range in.Databases {
		if in.Databases[i].DatabaseID != databaseID {
			continue
		}
		for _, t := range tables {
			if !containsFold(in.Databases[i].Tables, t) {
				in.Databases[i].Tables = append(in.Databases[i].Tables, t)
			}
		}
		return
	}
	in.Databases = append(in.Databases, DatabaseQueryIntent{
		DatabaseID: databaseID,
		Tables:     tables,
		Purpose:    "relocated tables for: " + in.Query,
		Priority:   2,
	})
}

// selectStrategy applies the rule-based mapping from confidence to
// strategy.
func selectStrategy(confidence float64, hasTargets bool) Strategy {
	switch {
	case confidence >= 0.7 && hasTargets:
		return DatabaseOnly
	case confidence >= 0.7:
		return DocumentOnly
	case confidence >= 0.3:
		return Hybrid
	default:
		return DocumentOnly
	}
}

// nonEnglishRe matches characters forbidden in English SQL: Turkish and
// German letters plus Cyrillic.
var nonEnglishRe = regexp.MustCompile(`[çğıöşüÇĞİÖŞÜäÄßа-яА-Я]`)

func hasNonEnglish(s string) bool {
	return nonEnglishRe.MatchString(s)
}

func anyNonEnglish(items []string) bool {
	for _, s := range items {
		if hasNonEnglish(s) {
			return true
		}
	}
	return false
}

func containsFold(items []string, target string) bool {
	for _, s := range items {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
