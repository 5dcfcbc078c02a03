package dialect

import (
	"fmt"
	"strings"
)

// mysqlStrategy implements Strategy for MySQL.
type mysqlStrategy struct{}

func (mysqlStrategy) Dialect() Dialect   { return MySQL }
func (mysqlStrategy) DriverName() string { return "mysql" }

func (mysqlStrategy) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlStrategy) ApplyLimit(sql string, n int) string {
	return appendLimit(sql, n)
}

func (mysqlStrategy) PromptPreamble() string {
	return `Database dialect: MySQL.
- Use backticks for identifiers, single quotes for strings.
- Use CONCAT() for string concatenation.
- LIMIT syntax: LIMIT offset, count.`
}

func (mysqlStrategy) ListTablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (mysqlStrategy) ListColumnsQuery(table string) string {
	return fmt.Sprintf(`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH, COLUMN_KEY
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = '%s'
ORDER BY ORDINAL_POSITION`, escapeLiteral(table))
}

func (mysqlStrategy) ListPrimaryKeysQuery(table string) string {
	return fmt.Sprintf(`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = '%s' AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY ORDINAL_POSITION`, escapeLiteral(table))
}

func (mysqlStrategy) ListForeignKeysQuery(table string) string {
	return fmt.Sprintf(`SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = '%s' AND REFERENCED_TABLE_NAME IS NOT NULL`, escapeLiteral(table))
}

func (s mysqlStrategy) SampleRowsQuery(table string, n int) string {
	return fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, s.QuoteIdentifier(table), n)
}

func (s mysqlStrategy) CountQuery(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.QuoteIdentifier(table))
}

// escapeLiteral escapes single quotes in a string literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
