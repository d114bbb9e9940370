// Package dbx lets the SQL repositories run against a *sql.DB, a *sql.Tx or
// a go-sqlmock handle without knowing which.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is implemented by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
