package dialect

import (
	"fmt"
	"strings"
)

// postgresStrategy implements Strategy for PostgreSQL. Identifier case is
// preserved everywhere; lookups against the catalog are case-sensitive.
type postgresStrategy struct{}

func (postgresStrategy) Dialect() Dialect   { return PostgreSQL }
func (postgresStrategy) DriverName() string { return "postgres" }

func (postgresStrategy) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresStrategy) ApplyLimit(sql string, n int) string {
	return appendLimit(sql, n)
}

func (postgresStrategy) PromptPreamble() string {
	return `Database dialect: PostgreSQL.
- Use double quotes for identifiers, single quotes for strings.
- Identifiers are CASE-SENSITIVE when quoted; use the exact casing shown in the schema.
- Use || for string concatenation.
- LIMIT syntax: LIMIT count OFFSET offset.`
}

func (postgresStrategy) ListTablesQuery() string {
	return `SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`
}

func (postgresStrategy) ListColumnsQuery(table string) string {
	return fmt.Sprintf(`SELECT column_name, data_type, is_nullable, character_maximum_length
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = '%s'
ORDER BY ordinal_position`, escapeLiteral(table))
}

func (postgresStrategy) ListPrimaryKeysQuery(table string) string {
	return fmt.Sprintf(`SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public' AND tc.table_name = '%s'`, escapeLiteral(table))
}

func (postgresStrategy) ListForeignKeysQuery(table string) string {
	return fmt.Sprintf(`SELECT kcu.column_name, ccu.table_name AS referenced_table, ccu.column_name AS referenced_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public' AND tc.table_name = '%s'`, escapeLiteral(table))
}

func (s postgresStrategy) SampleRowsQuery(table string, n int) string {
	return fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, s.QuoteIdentifier(table), n)
}

func (s postgresStrategy) CountQuery(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.QuoteIdentifier(table))
}
