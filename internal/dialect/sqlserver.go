package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// sqlServerStrategy implements Strategy for SQL Server.
type sqlServerStrategy struct{}

func (sqlServerStrategy) Dialect() Dialect   { return SQLServer }
func (sqlServerStrategy) DriverName() string { return "sqlserver" }

func (sqlServerStrategy) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var selectRe = regexp.MustCompile(`(?i)^\s*SELECT\s+`)

// ApplyLimit injects TOP right after SELECT when no TOP is present.
func (sqlServerStrategy) ApplyLimit(sql string, n int) string {
	upper := strings.ToUpper(sql)
	if strings.Contains(upper, "SELECT TOP ") || strings.Contains(upper, " TOP ") {
		return sql
	}
	loc := selectRe.FindStringIndex(sql)
	if loc == nil {
		return sql
	}
	return fmt.Sprintf("%sTOP %d %s", sql[:loc[1]], n, sql[loc[1]:])
}

func (sqlServerStrategy) PromptPreamble() string {
	return `Database dialect: SQL Server (T-SQL).
- Use square brackets for identifiers, single quotes for strings.
- Use TOP N instead of LIMIT.
- Use + for string concatenation.
- Use schema.table form (e.g. dbo.Orders), never database.schema.table.`
}

func (sqlServerStrategy) ListTablesQuery() string {
	return `SELECT s.name + '.' + t.name AS table_name
FROM sys.tables t
JOIN sys.schemas s ON t.schema_id = s.schema_id
ORDER BY s.name, t.name`
}

func (sqlServerStrategy) ListColumnsQuery(table string) string {
	schemaName, tableName := splitQualified(table)
	return fmt.Sprintf(`SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = '%s' AND TABLE_NAME = '%s'
ORDER BY ORDINAL_POSITION`, escapeLiteral(schemaName), escapeLiteral(tableName))
}

func (sqlServerStrategy) ListPrimaryKeysQuery(table string) string {
	schemaName, tableName := splitQualified(table)
	return fmt.Sprintf(`SELECT kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = '%s' AND tc.TABLE_NAME = '%s'`,
		escapeLiteral(schemaName), escapeLiteral(tableName))
}

// Foreign keys come from sys.foreign_keys; cross-schema targets keep their
// schema prefix.
func (sqlServerStrategy) ListForeignKeysQuery(table string) string {
	schemaName, tableName := splitQualified(table)
	return fmt.Sprintf(`SELECT pc.name AS column_name,
       rs.name + '.' + rt.name AS referenced_table,
       rc.name AS referenced_column
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
JOIN sys.tables pt ON fk.parent_object_id = pt.object_id
JOIN sys.schemas ps ON pt.schema_id = ps.schema_id
JOIN sys.columns pc ON fkc.parent_object_id = pc.object_id AND fkc.parent_column_id = pc.column_id
JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
JOIN sys.schemas rs ON rt.schema_id = rs.schema_id
JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
WHERE ps.name = '%s' AND pt.name = '%s'`, escapeLiteral(schemaName), escapeLiteral(tableName))
}

func (s sqlServerStrategy) SampleRowsQuery(table string, n int) string {
	return fmt.Sprintf(`SELECT TOP %d * FROM %s`, n, s.quoteQualified(table))
}

func (s sqlServerStrategy) CountQuery(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.quoteQualified(table))
}

// quoteQualified quotes each part of a schema.table name.
func (s sqlServerStrategy) quoteQualified(table string) string {
	schemaName, tableName := splitQualified(table)
	return s.QuoteIdentifier(schemaName) + "." + s.QuoteIdentifier(tableName)
}

// splitQualified splits schema.table, defaulting the schema to dbo.
func splitQualified(table string) (string, string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "dbo", table
}
