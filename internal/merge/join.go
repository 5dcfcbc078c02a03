package merge

import (
	"sort"
	"strconv"
	"strings"

	"github.com/byerlikaya/SmartRAG-sub011/internal/executor"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
)

// JoinedTable is the in-memory result of joining two database results on a
// shared key column.
type JoinedTable struct {
	LeftDatabase  string
	RightDatabase string
	LeftColumn    string
	RightColumn   string
	Columns       []string
	Rows          [][]string
}

// joinPlan names the pair of results and columns to join on.
type joinPlan struct {
	left, right       int // indexes into the result slice
	leftCol, rightCol string
	source            string // "mapping", "common_id", "value_overlap"
}

// discoverJoin finds the best join between successful results, in priority
// order: operator mapping, shared ID-suffixed column name, value overlap.
func discoverJoin(results []executor.DbResult, mappings []schema.CrossDatabaseMapping) *joinPlan {
	if plan := mappingJoin(results, mappings); plan != nil {
		return plan
	}
	if plan := commonIDJoin(results); plan != nil {
		return plan
	}
	return valueOverlapJoin(results)
}

func mappingJoin(results []executor.DbResult, mappings []schema.CrossDatabaseMapping) *joinPlan {
	for _, m := range mappings {
		li := resultIndex(results, m.SourceDatabase)
		ri := resultIndex(results, m.TargetDatabase)
		if li < 0 || ri < 0 {
			continue
		}
		lc := columnIndex(results[li].Columns, m.SourceColumn)
		rc := columnIndex(results[ri].Columns, m.TargetColumn)
		if lc < 0 || rc < 0 {
			continue
		}
		return &joinPlan{
			left: li, right: ri,
			leftCol:  results[li].Columns[lc],
			rightCol: results[ri].Columns[rc],
			source:   "mapping",
		}
	}
	return nil
}

// commonIDJoin picks the ID-suffixed column name shared by the most
// results, two at minimum; ties break alphabetically for determinism.
func commonIDJoin(results []executor.DbResult) *joinPlan {
	owners := make(map[string][]int) // lowercase column -> result indexes
	for i, r := range results {
		seen := make(map[string]struct{})
		for _, col := range r.Columns {
			key := strings.ToLower(col)
			if !strings.HasSuffix(key, "id") {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			owners[key] = append(owners[key], i)
		}
	}

	var bestCol string
	var bestOwners []int
	keys := make([]string, 0, len(owners))
	for k := range owners {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(owners[k]) >= 2 && len(owners[k]) > len(bestOwners) {
			bestCol, bestOwners = k, owners[k]
		}
	}
	if bestCol == "" {
		return nil
	}

	li, ri := bestOwners[0], bestOwners[1]
	return &joinPlan{
		left: li, right: ri,
		leftCol:  exactColumn(results[li].Columns, bestCol),
		rightCol: exactColumn(results[ri].Columns, bestCol),
		source:   "common_id",
	}
}

// valueOverlapJoin pairs ID-suffixed columns whose value sets intersect in
// at least max(2, 10% of the smaller set) entries, picking the pair with
// the largest intersection.
func valueOverlapJoin(results []executor.DbResult) *joinPlan {
	var best *joinPlan
	bestSize := 0
	for li := 0; li < len(results); li++ {
		for ri := li + 1; ri < len(results); ri++ {
			for lc, lcol := range results[li].Columns {
				if !strings.HasSuffix(strings.ToLower(lcol), "id") {
					continue
				}
				lvals := columnValues(results[li].Rows, lc)
				if len(lvals) == 0 {
					continue
				}
				for rc, rcol := range results[ri].Columns {
					if !strings.HasSuffix(strings.ToLower(rcol), "id") {
						continue
					}
					rvals := columnValues(results[ri].Rows, rc)
					if len(rvals) == 0 {
						continue
					}
					smaller := len(lvals)
					if len(rvals) < smaller {
						smaller = len(rvals)
					}
					need := smaller / 10
					if need < 2 {
						need = 2
					}
					size := intersectionSize(lvals, rvals)
					if size >= need && size > bestSize {
						best = &joinPlan{
							left: li, right: ri,
							leftCol: lcol, rightCol: rcol,
							source: "value_overlap",
						}
						bestSize = size
					}
				}
			}
		}
	}
	return best
}

// innerJoin performs the in-memory INNER JOIN of two results on the plan's
// columns. Each left row pairs with at most one right row and each right
// row is consumed at most once, so the joined row count never exceeds
// either input. Colliding column names are qualified with their database
// id.
func innerJoin(results []executor.DbResult, plan *joinPlan) *JoinedTable {
	left, right := results[plan.left], results[plan.right]
	lc := columnIndex(left.Columns, plan.leftCol)
	rc := columnIndex(right.Columns, plan.rightCol)
	if lc < 0 || rc < 0 {
		return nil
	}

	index := make(map[string][]string)
	for _, row := range right.Rows {
		if rc >= len(row) {
			continue
		}
		key := normalizeKey(row[rc])
		if key == "" {
			continue
		}
		if _, dup := index[key]; dup {
			continue
		}
		index[key] = row
	}

	joined := &JoinedTable{
		LeftDatabase:  left.DatabaseID,
		RightDatabase: right.DatabaseID,
		LeftColumn:    plan.leftCol,
		RightColumn:   plan.rightCol,
		Columns:       unionColumns(left, right),
	}
	for _, lrow := range left.Rows {
		if lc >= len(lrow) {
			continue
		}
		key := normalizeKey(lrow[lc])
		rrow, ok := index[key]
		if !ok {
			continue
		}
		delete(index, key)
		row := make([]string, 0, len(joined.Columns))
		row = append(row, lrow...)
		row = append(row, rrow...)
		joined.Rows = append(joined.Rows, row)
	}
	if len(joined.Rows) == 0 {
		return nil
	}
	return joined
}

func unionColumns(left, right executor.DbResult) []string {
	out := make([]string, 0, len(left.Columns)+len(right.Columns))
	seen := make(map[string]struct{})
	for _, c := range left.Columns {
		seen[strings.ToLower(c)] = struct{}{}
		out = append(out, c)
	}
	for _, c := range right.Columns {
		if _, dup := seen[strings.ToLower(c)]; dup {
			out = append(out, right.DatabaseID+"."+c)
			continue
		}
		out = append(out, c)
	}
	return out
}

// normalizeKey makes join keys comparable across databases: trimmed,
// case-folded, and numerics rendered canonically so "5.0" matches "5".
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToLower(s)
}

func columnValues(rows [][]string, col int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if key := normalizeKey(row[col]); key != "" {
			out[key] = struct{}{}
		}
	}
	return out
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func resultIndex(results []executor.DbResult, databaseID string) int {
	for i, r := range results {
		if strings.EqualFold(r.DatabaseID, databaseID) && r.Success && len(r.Rows) > 0 {
			return i
		}
	}
	return -1
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func exactColumn(columns []string, lower string) string {
	for _, c := range columns {
		if strings.ToLower(c) == lower {
			return c
		}
	}
	return lower
}
