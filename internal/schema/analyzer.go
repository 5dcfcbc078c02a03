package schema

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/byerlikaya/SmartRAG-sub011/internal/adapter"
	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
)

const sampleRowCount = 3

// failedSchema records an analysis failure for a database that never got
// past dialect parsing or connection.
func failedSchema(cfg config.DatabaseConfig, id string, err error) *DatabaseSchema {
	if id == "" {
		id = DeriveID(cfg)
	}
	return &DatabaseSchema{
		ID:         id,
		Status:     StatusFailed,
		Error:      err.Error(),
		AnalyzedAt: time.Now(),
	}
}

// analyzeDatabase discovers metadata for one configured database using a
// transient connection. Failures yield an empty schema with StatusFailed so
// downstream code can skip the database.
func analyzeDatabase(ctx context.Context, cfg config.DatabaseConfig) *DatabaseSchema {
	d, err := dialect.Parse(cfg.Dialect)
	if err != nil {
		return failedSchema(cfg, "", err)
	}

	result := &DatabaseSchema{
		ID:           DeriveID(cfg),
		Dialect:      d,
		DatabaseName: databaseName(d, cfg.ConnectionString),
		AnalyzedAt:   time.Now(),
	}

	conn, err := adapter.Open(ctx, d, cfg.ConnectionString)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}
	defer conn.Close()

	strategy := conn.Strategy()

	tablesRes, err := conn.Query(ctx, strategy.ListTablesQuery(), 0)
	if err != nil {
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("failed to enumerate tables: %v", err)
		return result
	}

	for _, row := range tablesRes.Rows {
		if len(row) == 0 {
			continue
		}
		tableName := row[0]
		if !tableAllowed(tableName, cfg.IncludedTables, cfg.ExcludedTables) {
			continue
		}

		table, err := analyzeTable(ctx, conn, strategy, tableName)
		if err != nil {
			// One bad table does not fail the whole database.
			log.WithError(err).Warnf("skipping table %s in %s", tableName, result.ID)
			continue
		}
		result.Tables = append(result.Tables, *table)
	}

	result.Status = StatusReady
	return result
}

func analyzeTable(ctx context.Context, conn *adapter.Conn, strategy dialect.Strategy, name string) (*Table, error) {
	table := &Table{Name: name}

	colsRes, err := conn.Query(ctx, strategy.ListColumnsQuery(name), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	table.Columns = parseColumns(strategy.Dialect(), colsRes)
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no readable columns", name)
	}

	// Primary keys: SQLite reports them in table_info already.
	if strategy.Dialect() != dialect.SQLite {
		pkRes, err := conn.Query(ctx, strategy.ListPrimaryKeysQuery(name), 0)
		if err == nil {
			for _, row := range pkRes.Rows {
				if len(row) == 0 {
					continue
				}
				if col, ok := table.Column(row[0]); ok {
					col.IsPrimaryKey = true
				}
			}
		}
	}

	fkRes, err := conn.Query(ctx, strategy.ListForeignKeysQuery(name), 0)
	if err == nil {
		table.ForeignKeys = parseForeignKeys(strategy.Dialect(), fkRes)
		for _, fk := range table.ForeignKeys {
			if col, ok := table.Column(fk.Column); ok {
				col.IsForeignKey = true
			}
		}
	}

	if count, err := conn.QueryScalar(ctx, strategy.CountQuery(name)); err == nil {
		table.RowCount, _ = strconv.ParseInt(count, 10, 64)
	}

	if sample, err := conn.Query(ctx, strategy.SampleRowsQuery(name, sampleRowCount), sampleRowCount); err == nil {
		for _, row := range sample.Rows {
			table.SampleRows = append(table.SampleRows, strings.Join(row, " | "))
		}
	}

	return table, nil
}

// parseColumns maps the dialect-specific metadata result onto Column records.
// Column casing is preserved exactly as reported.
func parseColumns(d dialect.Dialect, res *adapter.QueryResult) []Column {
	var cols []Column
	for _, row := range res.Rows {
		switch d {
		case dialect.SQLite:
			// PRAGMA table_info: cid, name, type, notnull, dflt_value, pk
			if len(row) < 6 {
				continue
			}
			cols = append(cols, Column{
				Name:         row[1],
				Type:         row[2],
				Nullable:     row[3] == "0",
				IsPrimaryKey: row[5] != "0" && row[5] != "",
			})
		case dialect.MySQL:
			// COLUMN_NAME, DATA_TYPE, IS_NULLABLE, CHARACTER_MAXIMUM_LENGTH, COLUMN_KEY
			if len(row) < 5 {
				continue
			}
			cols = append(cols, Column{
				Name:         row[0],
				Type:         row[1],
				Nullable:     strings.EqualFold(row[2], "YES"),
				MaxLength:    atoiOrZero(row[3]),
				IsPrimaryKey: row[4] == "PRI",
			})
		default:
			// column_name, data_type, is_nullable, character_maximum_length
			if len(row) < 4 {
				continue
			}
			cols = append(cols, Column{
				Name:      row[0],
				Type:      row[1],
				Nullable:  strings.EqualFold(row[2], "YES"),
				MaxLength: atoiOrZero(row[3]),
			})
		}
	}
	return cols
}

func parseForeignKeys(d dialect.Dialect, res *adapter.QueryResult) []ForeignKey {
	var fks []ForeignKey
	for _, row := range res.Rows {
		switch d {
		case dialect.SQLite:
			// PRAGMA foreign_key_list: id, seq, table, from, to, ...
			if len(row) < 5 {
				continue
			}
			fks = append(fks, ForeignKey{
				Column:           row[3],
				ReferencedTable:  row[2],
				ReferencedColumn: row[4],
			})
		default:
			// column_name, referenced_table, referenced_column
			if len(row) < 3 {
				continue
			}
			fks = append(fks, ForeignKey{
				Column:           row[0],
				ReferencedTable:  row[1],
				ReferencedColumn: row[2],
			})
		}
	}
	return fks
}

func tableAllowed(name string, included, excluded []string) bool {
	for _, ex := range excluded {
		if strings.EqualFold(ex, name) {
			return false
		}
	}
	if len(included) == 0 {
		return true
	}
	for _, in := range included {
		if strings.EqualFold(in, name) {
			return true
		}
	}
	return false
}

// DeriveID returns the stable registry id for a database config: the
// configured name when present, else dialect plus database name.
func DeriveID(cfg config.DatabaseConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	d, err := dialect.Parse(cfg.Dialect)
	if err != nil {
		return cfg.ConnectionString
	}
	return fmt.Sprintf("%s_%s", d, databaseName(d, cfg.ConnectionString))
}

// databaseName pulls the database name out of the connection string, best
// effort per dialect.
func databaseName(d dialect.Dialect, connString string) string {
	switch d {
	case dialect.SQLite:
		base := filepath.Base(connString)
		return strings.TrimSuffix(base, filepath.Ext(base))
	case dialect.MySQL:
		// user:pass@tcp(host:port)/dbname?params
		s := connString
		if i := strings.LastIndexByte(s, '/'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.IndexByte(s, '?'); i >= 0 {
			s = s[:i]
		}
		if s != "" {
			return s
		}
	case dialect.PostgreSQL:
		if u, err := url.Parse(connString); err == nil && u.Path != "" && u.Path != "/" {
			return strings.TrimPrefix(u.Path, "/")
		}
		for _, kv := range strings.Fields(connString) {
			if strings.HasPrefix(kv, "dbname=") {
				return strings.TrimPrefix(kv, "dbname=")
			}
		}
	case dialect.SQLServer:
		if u, err := url.Parse(connString); err == nil {
			if db := u.Query().Get("database"); db != "" {
				return db
			}
		}
	}
	return "database"
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
