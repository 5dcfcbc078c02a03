package merge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/executor"
	"github.com/byerlikaya/SmartRAG-sub011/internal/intent"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
	"github.com/byerlikaya/SmartRAG-sub011/internal/sqlgen"
)

var log = logger.Component("merge")

const (
	maxRetryIDs        = 50
	maxDescriptiveCols = 5
)

// descriptiveNamePatterns is the fallback used when column types alone
// cannot identify human-readable columns.
var descriptiveNamePatterns = []string{"name", "title", "description", "city", "address"}

// Outcome is the merged view of all database results for one question.
type Outcome struct {
	Results []executor.DbResult
	Joined  *JoinedTable
	Hints   []string
}

// Merger combines multi-database results: it recovers rows from targets
// that returned nothing, joins result sets on shared keys, and emits join
// hints when an automatic join is not possible.
type Merger struct {
	registry *schema.Registry
	executor *executor.Executor
}

// NewMerger builds a merger over the schema registry and query executor.
func NewMerger(registry *schema.Registry, exec *executor.Executor) *Merger {
	return &Merger{registry: registry, executor: exec}
}

// Merge post-processes the executor results for one intent. The input
// slice is not modified.
func (m *Merger) Merge(ctx context.Context, in *intent.Intent, results []executor.DbResult) *Outcome {
	out := &Outcome{Results: append([]executor.DbResult(nil), results...)}

	out.Results = append(out.Results, m.retryMissingTargets(ctx, in, out.Results)...)

	succeeded := successful(out.Results)
	if len(succeeded) >= 2 {
		if plan := discoverJoin(succeeded, m.registry.Mappings()); plan != nil {
			out.Joined = innerJoin(succeeded, plan)
			if out.Joined != nil {
				log.Debugf("joined %s and %s on %s/%s (%s)", out.Joined.LeftDatabase,
					out.Joined.RightDatabase, out.Joined.LeftColumn, out.Joined.RightColumn, plan.source)
			}
		}
		if out.Joined == nil {
			out.Hints = joinHints(succeeded)
		}
	}
	return out
}

// retryMissingTargets issues a recovery SELECT against every intent target
// that produced no rows, using the ID values that other results hold for
// it. Unreachable targets are skipped.
func (m *Merger) retryMissingTargets(ctx context.Context, in *intent.Intent, results []executor.DbResult) []executor.DbResult {
	succeeded := successful(results)
	if len(succeeded) == 0 {
		return nil
	}

	var recovered []executor.DbResult
	for _, target := range in.Databases {
		if hasRows(results, target.DatabaseID) {
			continue
		}
		q, ok := m.buildRetryQuery(target.DatabaseID, succeeded)
		if !ok {
			continue
		}
		log.Debugf("retrying missing target %s: %s", target.DatabaseID, q.SQL)
		res := m.executor.ExecuteOne(ctx, q)
		if res.Success && res.RowCount > 0 {
			recovered = append(recovered, res)
		}
	}
	return recovered
}

// buildRetryQuery finds a key column shared between the target schema and
// a successful result, then selects that key plus descriptive columns for
// the referenced ids. Operator mappings are consulted before the column
// name heuristic.
func (m *Merger) buildRetryQuery(databaseID string, succeeded []executor.DbResult) (sqlgen.GeneratedQuery, bool) {
	sch, ok := m.registry.Get(databaseID)
	if !ok || sch.Status != schema.StatusReady {
		return sqlgen.GeneratedQuery{}, false
	}
	strategy, err := dialect.ForStrategy(sch.Dialect)
	if err != nil {
		return sqlgen.GeneratedQuery{}, false
	}
	cfg, _ := m.registry.Config(databaseID)

	if q, ok := m.mappedRetryQuery(databaseID, sch, strategy, cfg, succeeded); ok {
		return q, true
	}

	for _, r := range succeeded {
		for ci, col := range r.Columns {
			lower := strings.ToLower(col)
			// A bare "id" is the source's own key, not a reference.
			if lower == "id" || !strings.HasSuffix(lower, "id") {
				continue
			}
			table, keyCol, ok := findKeyColumn(sch, col)
			if !ok {
				continue
			}
			ids := numericValues(r.Rows, ci)
			if len(ids) == 0 {
				continue
			}
			return composeRetryQuery(strategy, cfg, databaseID, r.DatabaseID, table, keyCol, ids), true
		}
	}
	return sqlgen.GeneratedQuery{}, false
}

// mappedRetryQuery builds the recovery SELECT from an operator mapping
// whose endpoint column names share nothing, which the name heuristic
// cannot bridge.
func (m *Merger) mappedRetryQuery(databaseID string, sch *schema.DatabaseSchema, strategy dialect.Strategy,
	cfg config.DatabaseConfig, succeeded []executor.DbResult) (sqlgen.GeneratedQuery, bool) {

	for _, mp := range m.registry.Mappings() {
		srcDB, srcCol := mp.SourceDatabase, mp.SourceColumn
		tgtTable, tgtCol := mp.TargetTable, mp.TargetColumn
		switch {
		case strings.EqualFold(mp.TargetDatabase, databaseID):
		case strings.EqualFold(mp.SourceDatabase, databaseID):
			srcDB, srcCol = mp.TargetDatabase, mp.TargetColumn
			tgtTable, tgtCol = mp.SourceTable, mp.SourceColumn
		default:
			continue
		}

		table, ok := sch.Table(tgtTable)
		if !ok {
			continue
		}
		keyCol, ok := table.Column(tgtCol)
		if !ok {
			continue
		}
		for _, r := range succeeded {
			if !strings.EqualFold(r.DatabaseID, srcDB) {
				continue
			}
			ci := columnIndex(r.Columns, srcCol)
			if ci < 0 {
				continue
			}
			ids := numericValues(r.Rows, ci)
			if len(ids) == 0 {
				continue
			}
			return composeRetryQuery(strategy, cfg, databaseID, r.DatabaseID, table, keyCol, ids), true
		}
	}
	return sqlgen.GeneratedQuery{}, false
}

func composeRetryQuery(strategy dialect.Strategy, cfg config.DatabaseConfig, databaseID, sourceID string,
	table *schema.Table, keyCol *schema.Column, ids []string) sqlgen.GeneratedQuery {

	cols := append([]string{keyCol.Name}, descriptiveColumns(table, keyCol.Name)...)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = strategy.QuoteIdentifier(c)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(quoted, ", "),
		strategy.QuoteIdentifier(table.Name),
		strategy.QuoteIdentifier(keyCol.Name),
		strings.Join(ids, ", "))
	if cfg.MaxRowsPerQuery > 0 {
		sql = strategy.ApplyLimit(sql, cfg.MaxRowsPerQuery)
	}
	return sqlgen.GeneratedQuery{
		DatabaseID: databaseID,
		SQL:        sql,
		Purpose:    "fetch rows referenced by " + sourceID,
	}
}

// findKeyColumn locates the table and column in sch matching a foreign
// ID column name: an exact column match, or the primary key of the table
// the name points at (CustomerId -> Customers.Id).
func findKeyColumn(sch *schema.DatabaseSchema, idColumn string) (*schema.Table, *schema.Column, bool) {
	for i := range sch.Tables {
		t := &sch.Tables[i]
		if c, ok := t.Column(idColumn); ok {
			return t, c, true
		}
	}

	prefix := strings.TrimSuffix(strings.ToLower(idColumn), "id")
	if prefix == "" {
		return nil, nil, false
	}
	for i := range sch.Tables {
		t := &sch.Tables[i]
		if !strings.HasPrefix(strings.ToLower(t.Name), prefix) {
			continue
		}
		for j := range t.Columns {
			if t.Columns[j].IsPrimaryKey {
				return t, &t.Columns[j], true
			}
		}
	}
	return nil, nil, false
}

// descriptiveColumns picks up to five human-readable columns: wide text
// columns first, then name-pattern matches, then anything but the key.
func descriptiveColumns(t *schema.Table, keyColumn string) []string {
	var out []string
	picked := map[string]struct{}{strings.ToLower(keyColumn): {}}

	add := func(name string) bool {
		key := strings.ToLower(name)
		if _, dup := picked[key]; dup {
			return len(out) >= maxDescriptiveCols
		}
		picked[key] = struct{}{}
		out = append(out, name)
		return len(out) >= maxDescriptiveCols
	}

	for _, c := range t.Columns {
		if c.IsPrimaryKey || c.IsForeignKey || !isTextType(c.Type) {
			continue
		}
		if c.MaxLength > 0 && c.MaxLength <= 10 {
			continue
		}
		if add(c.Name) {
			return out
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, pattern := range descriptiveNamePatterns {
		for _, c := range t.Columns {
			if strings.Contains(strings.ToLower(c.Name), pattern) {
				if add(c.Name) {
					return out
				}
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, c := range t.Columns {
		if add(c.Name) {
			return out
		}
	}
	return out
}

func isTextType(columnType string) bool {
	lower := strings.ToLower(columnType)
	for _, t := range []string{"char", "text", "string", "clob"} {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// numericValues returns the distinct numeric values of a column, sorted,
// capped at maxRetryIDs. Non-numeric values disqualify nothing but are
// skipped; IN lists are only built from numbers.
func numericValues(rows [][]string, col int) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			continue
		}
		seen[v] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, _ := strconv.ParseFloat(out[i], 64)
		fj, _ := strconv.ParseFloat(out[j], 64)
		return fi < fj
	})
	if len(out) > maxRetryIDs {
		out = out[:maxRetryIDs]
	}
	return out
}

// joinHints describes the ID columns each result carries so the answer
// stage can relate rows the merger could not join automatically.
func joinHints(succeeded []executor.DbResult) []string {
	var hints []string
	for _, r := range succeeded {
		var idCols []string
		for _, col := range r.Columns {
			if strings.HasSuffix(strings.ToLower(col), "id") {
				idCols = append(idCols, col)
			}
		}
		if len(idCols) > 0 {
			hints = append(hints, fmt.Sprintf("%s rows carry key columns: %s", r.DatabaseID, strings.Join(idCols, ", ")))
		}
	}
	if len(hints) >= 2 {
		hints = append(hints, "Rows sharing the same key value across sources describe the same entity.")
		return hints
	}
	return nil
}

func successful(results []executor.DbResult) []executor.DbResult {
	var out []executor.DbResult
	for _, r := range results {
		if r.Success && len(r.Rows) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func hasRows(results []executor.DbResult, databaseID string) bool {
	for _, r := range results {
		if strings.EqualFold(r.DatabaseID, databaseID) && r.Success && r.RowCount > 0 {
			return true
		}
	}
	return false
}
