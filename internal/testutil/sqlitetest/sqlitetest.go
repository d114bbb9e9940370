// Package sqlitetest opens migrated in-memory SQLite databases for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// DSN is a private in-memory database with foreign keys enforced. Every
// connection to it sees a different database, so callers keep the pool at
// one connection.
const DSN = "file::memory:?_pragma=foreign_keys(1)"

// Open returns an in-memory database with the schema applied. It is closed
// when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", DSN)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	fsys, err := migrations.Dir(migrations.SQLite)
	require.NoError(t, err)

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	require.NoError(t, err)

	_, err = provider.Up(context.Background())
	require.NoError(t, err)

	return db
}
