package dialect

import (
	"fmt"
	"strings"
)

// sqliteStrategy implements Strategy for SQLite.
type sqliteStrategy struct{}

func (sqliteStrategy) Dialect() Dialect   { return SQLite }
func (sqliteStrategy) DriverName() string { return "sqlite" }

// QuoteIdentifier leaves simple SQLite names bare, double-quotes the rest.
func (sqliteStrategy) QuoteIdentifier(name string) string {
	if simpleIdentifier(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteStrategy) ApplyLimit(sql string, n int) string {
	return appendLimit(sql, n)
}

func (sqliteStrategy) PromptPreamble() string {
	return `Database dialect: SQLite.
- Use double quotes for identifiers only when necessary, single quotes for strings.
- Use || for string concatenation.
- LIMIT syntax: LIMIT count OFFSET offset.`
}

func (sqliteStrategy) ListTablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (s sqliteStrategy) ListColumnsQuery(table string) string {
	return fmt.Sprintf(`PRAGMA table_info(%s)`, s.QuoteIdentifier(table))
}

// Primary keys come back in the table_info pragma (pk column).
func (s sqliteStrategy) ListPrimaryKeysQuery(table string) string {
	return s.ListColumnsQuery(table)
}

func (s sqliteStrategy) ListForeignKeysQuery(table string) string {
	return fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, s.QuoteIdentifier(table))
}

func (s sqliteStrategy) SampleRowsQuery(table string, n int) string {
	return fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, s.QuoteIdentifier(table), n)
}

func (s sqliteStrategy) CountQuery(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.QuoteIdentifier(table))
}
