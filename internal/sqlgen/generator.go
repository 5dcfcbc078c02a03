package sqlgen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/document"
	"github.com/byerlikaya/SmartRAG-sub011/internal/intent"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

var log = logger.Component("sqlgen")

// GeneratedQuery is a validated SELECT bound to one database.
type GeneratedQuery struct {
	DatabaseID string
	SQL        string
	Purpose    string
}

// GenerationFailure records a target that produced no valid SQL.
type GenerationFailure struct {
	DatabaseID string
	Reason     string
}

// Generator turns database targets into dialect-correct SELECT statements.
type Generator struct {
	provider   llm.Provider
	registry   *schema.Registry
	maxRetries int
}

// NewGenerator builds a generator; maxRetries counts corrective attempts
// after the first one.
func NewGenerator(provider llm.Provider, registry *schema.Registry, maxRetries int) *Generator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Generator{provider: provider, registry: registry, maxRetries: maxRetries}
}

// Generate produces one query per database target. A target whose SQL
// never validates is dropped and reported as a failure; peers are kept.
func (g *Generator) Generate(ctx context.Context, in *intent.Intent) ([]GeneratedQuery, []GenerationFailure) {
	targets := make([]intent.DatabaseQueryIntent, len(in.Databases))
	copy(targets, in.Databases)
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority < targets[j].Priority
		}
		return targets[i].DatabaseID < targets[j].DatabaseID
	})

	var queries []GeneratedQuery
	var failures []GenerationFailure
	for _, target := range targets {
		q, err := g.generateOne(ctx, in.Query, target)
		if err != nil {
			log.WithError(err).Warnf("dropping database target %s", target.DatabaseID)
			failures = append(failures, GenerationFailure{DatabaseID: target.DatabaseID, Reason: err.Error()})
			continue
		}
		queries = append(queries, q)
	}
	return queries, failures
}

func (g *Generator) generateOne(ctx context.Context, query string, target intent.DatabaseQueryIntent) (GeneratedQuery, error) {
	sch, ok := g.registry.Get(target.DatabaseID)
	if !ok || sch.Status != schema.StatusReady {
		return GeneratedQuery{}, fmt.Errorf("schema for %s is not ready", target.DatabaseID)
	}
	strategy, err := dialect.ForStrategy(sch.Dialect)
	if err != nil {
		return GeneratedQuery{}, err
	}

	prompt := g.buildPrompt(query, target, sch, strategy)
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			prompt = fmt.Sprintf("%s\n\nYour previous SQL was rejected: %v.\nRegenerate the query fixing only that problem.", prompt, lastErr)
		}
		response, err := g.provider.GenerateResponse(ctx, prompt, nil)
		if err != nil {
			return GeneratedQuery{}, fmt.Errorf("SQL generation for %s failed: %w", target.DatabaseID, err)
		}
		sql := ExtractSQL(response)
		if err := Validate(sql, sch.Dialect, sch); err != nil {
			lastErr = err
			log.Debugf("attempt %d for %s rejected: %v", attempt+1, target.DatabaseID, err)
			continue
		}
		return GeneratedQuery{DatabaseID: target.DatabaseID, SQL: sql, Purpose: target.Purpose}, nil
	}
	return GeneratedQuery{}, fmt.Errorf("no valid SQL after %d attempts: %w", g.maxRetries+1, lastErr)
}

func (g *Generator) buildPrompt(query string, target intent.DatabaseQueryIntent, sch *schema.DatabaseSchema, strategy dialect.Strategy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a %s expert. Write one SQL query for the question below.\n\n", sch.Dialect)
	fmt.Fprintf(&sb, "Database: %s (%s)\n", sch.DatabaseName, sch.Dialect)
	if target.Purpose != "" {
		fmt.Fprintf(&sb, "Purpose: %s\n", target.Purpose)
	}
	fmt.Fprintf(&sb, "Question: %s\n\n", query)

	sb.WriteString("Schema:\n")
	for _, name := range target.Tables {
		t, ok := sch.Table(name)
		if !ok {
			continue
		}
		writeTable(&sb, t)
	}

	if preamble := strategy.PromptPreamble(); preamble != "" {
		sb.WriteString("\n")
		sb.WriteString(preamble)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Rules:
- Generate exactly one SELECT statement. Never use CREATE, DROP, DELETE, UPDATE, INSERT, EXEC, GRANT or REVOKE.
- Every non-aggregated column in SELECT must appear in GROUP BY.
- Never use CROSS JOIN; join tables with INNER JOIN or LEFT JOIN and an ON condition.
- Reference tables as schema.table where the dialect has schemas; never invent tables or columns not listed above.
- Always include ID columns in the SELECT list so results can be joined later.
- Use only English characters in the SQL.
`)

	if unmatched := unmatchedKeywords(query, target, sch); len(unmatched) > 0 {
		fmt.Fprintf(&sb, "- These question words match no column and must NOT appear in WHERE: %s\n", strings.Join(unmatched, ", "))
	}
	if target.NonEnglishHint {
		sb.WriteString("- The question mentions non-English names; translate them to the English values stored in the database.\n")
	}

	sb.WriteString("\nReturn only the SQL statement.\n")
	return sb.String()
}

// writeTable renders one table block: columns with types and key flags,
// then sample rows when available.
func writeTable(sb *strings.Builder, t *schema.Table) {
	fmt.Fprintf(sb, "Table %s (%d rows):\n", t.Name, t.RowCount)
	for _, c := range t.Columns {
		flags := ""
		if c.IsPrimaryKey {
			flags += " PK"
		}
		if c.IsForeignKey {
			flags += " FK"
		}
		nullable := ""
		if !c.Nullable {
			nullable = " NOT NULL"
		}
		fmt.Fprintf(sb, "  %s %s%s%s\n", c.Name, c.Type, nullable, flags)
	}
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(sb, "  FOREIGN KEY %s -> %s.%s\n", fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
	}
	if len(t.SampleRows) > 0 {
		sb.WriteString("  Sample rows:\n")
		for _, row := range t.SampleRows {
			fmt.Fprintf(sb, "    %s\n", row)
		}
	}
	sb.WriteString("\n")
}

// unmatchedKeywords lists question tokens that match no column name of the
// required tables; the prompt tells the AI to keep them out of WHERE.
func unmatchedKeywords(query string, target intent.DatabaseQueryIntent, sch *schema.DatabaseSchema) []string {
	var columns []string
	for _, name := range target.Tables {
		t, ok := sch.Table(name)
		if !ok {
			continue
		}
		for _, c := range t.Columns {
			columns = append(columns, strings.ToLower(c.Name))
		}
	}

	var unmatched []string
	for _, token := range document.Tokenize(query) {
		matched := false
		for _, col := range columns {
			if strings.Contains(col, token) || strings.Contains(token, col) {
				matched = true
				break
			}
		}
		if !matched {
			unmatched = append(unmatched, token)
		}
	}
	return unmatched
}
