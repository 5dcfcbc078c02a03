package executor

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
	"github.com/byerlikaya/SmartRAG-sub011/internal/sqlgen"
)

func newFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exec.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE Items (Id INTEGER PRIMARY KEY, Name TEXT);
INSERT INTO Items (Id, Name) VALUES (1, 'bolt'), (2, 'nut'), (3, 'washer');`)
	require.NoError(t, err)
	return path
}

func fixtureRegistry(t *testing.T, path string, maxRows int) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry([]config.DatabaseConfig{{
		Name:             "parts",
		ConnectionString: path,
		Dialect:          "sqlite",
		Enabled:          true,
		MaxRowsPerQuery:  maxRows,
	}})
	require.NoError(t, registry.Initialize(context.Background()))
	return registry
}

func TestExecuteOne(t *testing.T) {
	e := NewExecutor(fixtureRegistry(t, newFixture(t), 0), 10*time.Second)

	res := e.ExecuteOne(context.Background(), sqlgen.GeneratedQuery{
		DatabaseID: "parts",
		SQL:        "SELECT Id, Name FROM Items ORDER BY Id",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, []string{"Id", "Name"}, res.Columns)
	assert.Equal(t, []string{"1", "bolt"}, res.Rows[0])
	assert.False(t, res.Cancelled)
}

func TestExecuteOneAppliesRowCap(t *testing.T) {
	e := NewExecutor(fixtureRegistry(t, newFixture(t), 2), 10*time.Second)

	res := e.ExecuteOne(context.Background(), sqlgen.GeneratedQuery{
		DatabaseID: "parts",
		SQL:        "SELECT Id FROM Items ORDER BY Id",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecuteOneUnknownDatabase(t *testing.T) {
	e := NewExecutor(fixtureRegistry(t, newFixture(t), 0), time.Second)

	res := e.ExecuteOne(context.Background(), sqlgen.GeneratedQuery{DatabaseID: "nope", SQL: "SELECT 1"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown database")
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
	e := NewExecutor(fixtureRegistry(t, newFixture(t), 0), 10*time.Second)

	results := e.ExecuteAll(context.Background(), []sqlgen.GeneratedQuery{
		{DatabaseID: "parts", SQL: "SELECT BadColumn FROM Items"},
		{DatabaseID: "parts", SQL: "SELECT COUNT(*) AS n FROM Items"},
	})
	require.Len(t, results, 2)

	var ok, failed int
	for _, r := range results {
		if r.Success {
			ok++
			assert.Equal(t, [][]string{{"3"}}, r.Rows)
		} else {
			failed++
			assert.NotEmpty(t, r.Error)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestExecutorPoolsConnectionsPerDatabase(t *testing.T) {
	e := NewExecutor(fixtureRegistry(t, newFixture(t), 0), 10*time.Second)
	defer e.Close()

	for i := 0; i < 2; i++ {
		res := e.ExecuteOne(context.Background(), sqlgen.GeneratedQuery{
			DatabaseID: "parts",
			SQL:        "SELECT COUNT(*) AS n FROM Items",
		})
		require.True(t, res.Success, res.Error)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Len(t, e.conns, 1, "repeat queries borrow from one pool per database")
}

func TestExecuteOneCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExecutor(fixtureRegistry(t, newFixture(t), 0), time.Second)
	res := e.ExecuteOne(ctx, sqlgen.GeneratedQuery{DatabaseID: "parts", SQL: "SELECT 1"})
	assert.False(t, res.Success)
	assert.True(t, res.Cancelled)
}
