package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
)

// Conn is a borrowed connection to one configured database. Lightweight by
// design: it connects and executes SQL, no ORM.
type Conn struct {
	db       *sql.DB
	strategy dialect.Strategy
}

// QueryResult is the unified tabular result shape. Values are stringified
// at scan time; NULL becomes the empty string.
type QueryResult struct {
	Columns       []string
	Rows          [][]string
	RowCount      int
	Truncated     bool
	ExecutionTime time.Duration
}

// Open opens a connection for the given dialect and connection string and
// verifies it with a ping.
func Open(ctx context.Context, d dialect.Dialect, connString string) (*Conn, error) {
	strategy, err := dialect.ForStrategy(d)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(strategy.DriverName(), connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Conn{db: db, strategy: strategy}, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Strategy exposes the dialect strategy bound to this connection.
func (c *Conn) Strategy() dialect.Strategy {
	return c.strategy
}

// Query executes a statement and streams up to maxRows rows into a
// QueryResult. maxRows <= 0 means unlimited.
func (c *Conn) Query(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: columns}
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && result.RowCount >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make([]string, len(columns))
		for i := range columns {
			row[i] = stringify(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.ExecutionTime = time.Since(start)
	return result, nil
}

// QueryScalar executes a statement expected to return a single value.
func (c *Conn) QueryScalar(ctx context.Context, query string) (string, error) {
	result, err := c.Query(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if result.RowCount == 0 || len(result.Rows[0]) == 0 {
		return "", fmt.Errorf("query returned no value")
	}
	return result.Rows[0][0], nil
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
