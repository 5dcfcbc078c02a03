package merge

import (
	"fmt"
	"strings"
)

// Evidence renders the outcome as the tabular context block handed to the
// answer prompt. Each block leads with a row and column summary so the AI
// can reason about completeness before reading the data. When a join
// succeeded, the joined table replaces the per-database blocks it was built
// from.
func (o *Outcome) Evidence() string {
	var sb strings.Builder

	for _, r := range o.Results {
		if !r.Success || o.joinedInput(r.DatabaseID) {
			continue
		}
		fmt.Fprintf(&sb, "=== Database: %s ===\n", r.DatabaseID)
		writeBlock(&sb, r.Columns, r.Rows, r.RowCount, r.Truncated)
		sb.WriteString("\n")
	}

	if o.Joined != nil {
		fmt.Fprintf(&sb, "=== Joined: %s + %s (on %s) ===\n",
			o.Joined.LeftDatabase, o.Joined.RightDatabase, o.Joined.LeftColumn)
		writeBlock(&sb, o.Joined.Columns, o.Joined.Rows, len(o.Joined.Rows), false)
		sb.WriteString("\n")
	}

	if len(o.Hints) > 0 {
		sb.WriteString("Join hints:\n")
		for _, h := range o.Hints {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (o *Outcome) joinedInput(databaseID string) bool {
	if o.Joined == nil {
		return false
	}
	return strings.EqualFold(databaseID, o.Joined.LeftDatabase) ||
		strings.EqualFold(databaseID, o.Joined.RightDatabase)
}

func writeBlock(sb *strings.Builder, columns []string, rows [][]string, rowCount int, truncated bool) {
	fmt.Fprintf(sb, "📊 Total rows: %d | Columns: %s\n", rowCount, strings.Join(columns, ", "))
	if truncated {
		sb.WriteString("(result truncated at the row cap)\n")
	}
	sb.WriteString(strings.Join(columns, "\t"))
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}
}
