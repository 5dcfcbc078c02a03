package adapter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byerlikaya/SmartRAG-sub011/internal/dialect"
)

func newSQLiteFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE Customers (
    Id INTEGER PRIMARY KEY,
    Name TEXT NOT NULL,
    City TEXT
);
INSERT INTO Customers (Id, Name, City) VALUES
    (1, 'ACME', 'Berlin'),
    (2, 'Globex', NULL),
    (3, 'Initech', 'Vienna');`)
	require.NoError(t, err)
	return path
}

func TestOpenRejectsUnreachableDatabase(t *testing.T) {
	_, err := Open(context.Background(), dialect.SQLite, "/nonexistent/dir/x.db")
	assert.Error(t, err)
}

func TestQueryStringifiesRows(t *testing.T) {
	conn, err := Open(context.Background(), dialect.SQLite, newSQLiteFixture(t))
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Query(context.Background(), "SELECT Id, Name, City FROM Customers ORDER BY Id", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Name", "City"}, res.Columns)
	assert.Equal(t, 3, res.RowCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, []string{"1", "ACME", "Berlin"}, res.Rows[0])
	assert.Equal(t, "", res.Rows[1][2], "NULL becomes the empty string")
	assert.Greater(t, res.ExecutionTime.Nanoseconds(), int64(0))
}

func TestQueryCapsRows(t *testing.T) {
	conn, err := Open(context.Background(), dialect.SQLite, newSQLiteFixture(t))
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Query(context.Background(), "SELECT Id FROM Customers ORDER BY Id", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestQueryScalar(t *testing.T) {
	conn, err := Open(context.Background(), dialect.SQLite, newSQLiteFixture(t))
	require.NoError(t, err)
	defer conn.Close()

	count, err := conn.QueryScalar(context.Background(), "SELECT COUNT(*) FROM Customers")
	require.NoError(t, err)
	assert.Equal(t, "3", count)

	_, err = conn.QueryScalar(context.Background(), "SELECT Id FROM Customers WHERE Id = 99")
	assert.Error(t, err, "empty result is an error for scalar queries")
}

func TestQueryBadSQL(t *testing.T) {
	conn, err := Open(context.Background(), dialect.SQLite, newSQLiteFixture(t))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Query(context.Background(), "SELECT nope FROM Customers", 0)
	assert.Error(t, err)
}
