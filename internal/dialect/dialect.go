package dialect

import (
	"fmt"
	"strings"
)

// Dialect identifies a SQL syntax family.
type Dialect string

const (
	SQLite     Dialect = "sqlite"
	SQLServer  Dialect = "sqlserver"
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
)

// Parse maps a configured dialect string to a Dialect tag.
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgresql", "postgres", "pgsql":
		return PostgreSQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s", s)
	}
}

// Strategy captures the per-dialect behavior: identifier quoting, row
// limiting, the metadata query bank used by schema analysis, and the
// system-prompt preamble for SQL generation.
type Strategy interface {
	Dialect() Dialect

	// DriverName is the database/sql driver to open connections with.
	DriverName() string

	// QuoteIdentifier escapes one identifier (no schema qualification).
	QuoteIdentifier(name string) string

	// ApplyLimit caps a SELECT at n rows (LIMIT or TOP as appropriate).
	ApplyLimit(sql string, n int) string

	// PromptPreamble states the dialect-specific rules rendered into the
	// SQL generation prompt.
	PromptPreamble() string

	// Metadata query bank. Table names passed in are unquoted.
	ListTablesQuery() string
	ListColumnsQuery(table string) string
	ListPrimaryKeysQuery(table string) string
	ListForeignKeysQuery(table string) string
	SampleRowsQuery(table string, n int) string
	CountQuery(table string) string
}

// ForStrategy returns the strategy for a dialect tag. The set is closed.
func ForStrategy(d Dialect) (Strategy, error) {
	switch d {
	case SQLite:
		return sqliteStrategy{}, nil
	case SQLServer:
		return sqlServerStrategy{}, nil
	case MySQL:
		return mysqlStrategy{}, nil
	case PostgreSQL:
		return postgresStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", d)
	}
}

// MustStrategy is ForStrategy for dialects already validated at startup.
func MustStrategy(d Dialect) Strategy {
	s, err := ForStrategy(d)
	if err != nil {
		panic(err)
	}
	return s
}

// appendLimit appends a LIMIT clause unless one is already present.
func appendLimit(sql string, n int) string {
	if strings.Contains(strings.ToUpper(sql), "LIMIT ") {
		return sql
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(strings.TrimSpace(sql), ";"), n)
}

// simpleIdentifier reports whether a name needs no quoting.
func simpleIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
