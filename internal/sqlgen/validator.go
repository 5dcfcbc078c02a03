package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

// forbiddenKeywords are rejected as whole tokens anywhere in the statement.
var forbiddenKeywords = []string{
	"CREATE", "DROP", "DELETE", "UPDATE", "INSERT", "EXEC", "EXECUTE",
	"GRANT", "REVOKE", "TRUNCATE", "ALTER", "MERGE",
}

var (
	forbiddenRe  = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	crossJoinRe  = regexp.MustCompile(`(?i)\bCROSS\s+JOIN\b`)
	nonEnglishRe = regexp.MustCompile(`[çğıöşüÇĞİÖŞÜäÄßа-яА-Я]`)
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	tableRefRe   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([\w."\x60\[\]]+)`)
)

// Validate checks a generated statement: it must be a single SELECT, free
// of forbidden keywords, CROSS JOIN and non-English characters, and (for
// PostgreSQL) reference tables with the schema's exact casing.
func Validate(sql string, d dialect.Dialect, sch *schema.DatabaseSchema) error {
	stripped := strings.TrimSpace(blockComment.ReplaceAllString(lineComment.ReplaceAllString(sql, ""), ""))
	if stripped == "" {
		return fmt.Errorf("empty statement")
	}

	if i := strings.IndexByte(stripped, ';'); i >= 0 && strings.TrimSpace(stripped[i+1:]) != "" {
		return fmt.Errorf("multiple statements are not allowed")
	}

	if !strings.HasPrefix(strings.ToUpper(stripped), "SELECT") {
		return fmt.Errorf("only SELECT statements are allowed, got: %.40s", stripped)
	}

	if m := forbiddenRe.FindString(stripped); m != "" {
		return fmt.Errorf("forbidden keyword %s", strings.ToUpper(m))
	}

	if crossJoinRe.MatchString(stripped) {
		return fmt.Errorf("CROSS JOIN is forbidden; use INNER JOIN or LEFT JOIN with ON")
	}

	if m := nonEnglishRe.FindString(stripped); m != "" {
		return fmt.Errorf("non-English character %q in SQL", m)
	}

	if d == dialect.PostgreSQL && sch != nil {
		if err := checkPostgresCasing(stripped, sch); err != nil {
			return err
		}
	}

	return nil
}

// checkPostgresCasing verifies that referenced table identifiers match the
// schema's exact casing; PostgreSQL lookups are case-sensitive.
func checkPostgresCasing(sql string, sch *schema.DatabaseSchema) error {
	for _, m := range tableRefRe.FindAllStringSubmatch(sql, -1) {
		name := strings.Trim(m[1], "\"`[]")
		// Drop a schema qualifier; only the table part is checked.
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		t, ok := sch.Table(name)
		if !ok {
			continue // unknown names are the prompt's problem, not casing
		}
		if t.Name != name {
			return fmt.Errorf("table %q must use exact casing %q for PostgreSQL", name, t.Name)
		}
	}
	return nil
}

// ExtractSQL pulls the statement out of an AI reply: markdown fences,
// backtick wrapping and trailing commentary are stripped.
func ExtractSQL(response string) string {
	if idx := strings.Index(response, "Final Answer:"); idx >= 0 {
		response = response[idx+len("Final Answer:"):]
	}
	response = strings.TrimSpace(response)

	if i := strings.Index(response, "```"); i >= 0 {
		rest := response[i+3:]
		rest = strings.TrimPrefix(rest, "sql")
		rest = strings.TrimPrefix(rest, "\n")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		response = strings.TrimSpace(rest)
	}

	// Cut trailing explanation lines after the statement.
	lines := strings.Split(response, "\n")
	var sqlLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(sqlLines) > 0 && (strings.HasPrefix(trimmed, "This ") ||
			strings.HasPrefix(trimmed, "The ") ||
			strings.HasPrefix(trimmed, "Note:") ||
			trimmed == "") {
			break
		}
		sqlLines = append(sqlLines, line)
	}
	return strings.TrimSpace(strings.Join(sqlLines, "\n"))
}

// ExtractTables lists the table identifiers referenced after FROM or JOIN.
func ExtractTables(sql string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range tableRefRe.FindAllStringSubmatch(sql, -1) {
		name := strings.Trim(m[1], "\"`[]")
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
