package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/railsonsantospb/unifi-relay/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const defaultPingTimeout = 5 * time.Second

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool { return c.debug }
func (c persistenceConfig) GetDriver() string { return c.driver }
func (c persistenceConfig) GetServer() string { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return defaultPingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string { return "unifi-relay" }

// Open connects to the configured SQL backend and applies the state schema.
func Open(ctx context.Context, driver string, dsn string) (*persistence.Client, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	var (
		sqlDriver string
		dialect   schema.Dialect
		target    string
	)
	switch driver {
	case core.StateDriverSQLite:
		sqlDriver, dialect, target = "sqlite3", sqlitedialect.New(), migrations.DialectSQLite
	case core.StateDriverPostgres:
		sqlDriver, dialect, target = "postgres", pgdialect.New(), migrations.DialectPostgres
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == core.StateDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: sqlDriver, server: dsn}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	err = migrations.Register(target, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

// NewStateStoreFromClient builds the row store and, when ttl is positive,
// wraps it with a read-through cache.
func NewStateStoreFromClient(client any, ttl time.Duration, logger core.Logger) (core.StateStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	store, err := NewStateStore(db)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return store, nil
	}
	cfg := repositorycache.DefaultConfig()
	cfg.TTL = ttl
	cacheService, err := repositorycache.NewCacheService(cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: new cache service: %w", err)
	}
	return NewCachedStateStore(store, cacheService, logger)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
