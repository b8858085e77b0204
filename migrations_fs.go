// Package relay holds assets shared by the relay packages.
package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the SQL state schema, with sqlite alternatives under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
