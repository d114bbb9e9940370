// Package migrations embeds the goose SQL migrations, one directory per
// SQL dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// Directory names inside Migrations.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Dir returns the migrations for one dialect, rooted at that dialect's
// directory.
func Dir(name string) (fs.FS, error) {
	switch name {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("migrations: unknown dialect directory %q", name)
	}
	return fs.Sub(Migrations, name)
}
