// Package migrations resolves the embedded SQL state schema for one dialect.
package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	relay "github.com/railsonsantospb/unifi-relay"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsDir = "data/sql/migrations"

// Dir returns the embedded directory holding the migrations for dialect.
// Postgres files live at the root and sqlite files in a subdirectory.
func Dir(dialect string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
		return migrationsDir, nil
	case DialectSQLite:
		return migrationsDir + "/" + DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}

// FS returns the embedded migrations for dialect. It fails when the
// directory holds no *.up.sql file.
func FS(dialect string) (fs.FS, error) {
	dir, err := Dir(dialect)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(relay.GetMigrationsFS(), dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	matches, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return sub, nil
}

// Register hands the migrations for dialect to registerFn.
func Register(dialect string, registerFn func(fs.FS)) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}
	fsys, err := FS(dialect)
	if err != nil {
		return err
	}
	registerFn(fsys)
	return nil
}
