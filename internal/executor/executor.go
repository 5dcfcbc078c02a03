package executor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/byerlikaya/SmartRAG-sub011/internal/adapter"
	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
	"github.com/byerlikaya/SmartRAG-sub011/internal/sqlgen"
)

var log = logger.Component("executor")

// DbResult is the outcome of running one generated query against its
// database, success or failure.
type DbResult struct {
	DatabaseID string
	SQL        string
	Columns    []string
	Rows       [][]string
	RowCount   int
	Truncated  bool
	Success    bool
	Error      string
	Duration   time.Duration
	Cancelled  bool
}

// Executor runs generated queries against their databases in parallel,
// holding one connection pool per database. Queries borrow from the pool
// and return their connection on completion.
type Executor struct {
	registry *schema.Registry
	timeout  time.Duration

	mu    sync.Mutex
	conns map[string]*adapter.Conn
}

// NewExecutor builds an executor; timeout bounds each individual query.
func NewExecutor(registry *schema.Registry, timeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		timeout:  timeout,
		conns:    make(map[string]*adapter.Conn),
	}
}

// conn returns the pooled connection for a database, opening it on first
// use.
func (e *Executor) conn(ctx context.Context, id string, d dialect.Dialect, connString string) (*adapter.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[id]; ok {
		return c, nil
	}
	c, err := adapter.Open(ctx, d, connString)
	if err != nil {
		return nil, err
	}
	e.conns[id] = c
	return c, nil
}

// Close releases every pooled connection.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for id, c := range e.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.conns, id)
	}
	return first
}

// ExecuteAll runs every query concurrently and returns one DbResult per
// query, sorted by database id. A failing database never hides its peers.
func (e *Executor) ExecuteAll(ctx context.Context, queries []sqlgen.GeneratedQuery) []DbResult {
	results := make([]DbResult, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q sqlgen.GeneratedQuery) {
			defer wg.Done()
			results[i] = e.ExecuteOne(ctx, q)
		}(i, q)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DatabaseID < results[j].DatabaseID
	})
	return results
}

// ExecuteOne runs a single query with the per-query timeout and the
// configured row cap for its database.
func (e *Executor) ExecuteOne(ctx context.Context, q sqlgen.GeneratedQuery) DbResult {
	result := DbResult{DatabaseID: q.DatabaseID, SQL: q.SQL}
	start := time.Now()

	cfg, ok := e.registry.Config(q.DatabaseID)
	if !ok {
		result.Error = "unknown database: " + q.DatabaseID
		return result
	}
	sch, ok := e.registry.Get(q.DatabaseID)
	if !ok {
		result.Error = "no schema for database: " + q.DatabaseID
		return result
	}

	qctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	conn, err := e.conn(qctx, q.DatabaseID, sch.Dialect, cfg.ConnectionString)
	if err != nil {
		return e.failed(ctx, result, err, start)
	}

	maxRows := cfg.MaxRowsPerQuery
	res, err := conn.Query(qctx, q.SQL, maxRows)
	if err != nil {
		return e.failed(ctx, result, err, start)
	}

	result.Columns = res.Columns
	result.Rows = res.Rows
	result.RowCount = res.RowCount
	result.Truncated = res.Truncated
	result.Success = true
	result.Duration = time.Since(start)
	log.Debugf("%s returned %d row(s) in %s", q.DatabaseID, res.RowCount, result.Duration)
	return result
}

func (e *Executor) failed(ctx context.Context, result DbResult, err error, start time.Time) DbResult {
	result.Error = err.Error()
	result.Duration = time.Since(start)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		result.Cancelled = true
	}
	log.WithError(err).Warnf("query against %s failed", result.DatabaseID)
	return result
}
