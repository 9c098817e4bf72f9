package core

import (
	"context"
	"fmt"

	"gridrank/internal/infra/persistence/memory"
	"gridrank/internal/infra/persistence/mongo"
	"gridrank/internal/infra/persistence/postgres"
	"gridrank/internal/infra/persistence/sqlite"
	"gridrank/internal/platform/config"
	"gridrank/pkg/domain"
)

// StorageDriver identifies a concrete DataSource implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMongo    StorageDriver = "mongo"    // MongoDB replica set
)

// OpenDataSource selects and opens the backend named by cfg.StorageDriver,
// sqlite when unset. The schema or indexes are created on open.
func OpenDataSource(ctx context.Context, cfg config.Config) (domain.DataSource, error) {
	driver := StorageDriver(cfg.StorageDriver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.Open(ctx, cfg.SQLite.Path)
	case StoragePostgres:
		return postgres.Open(ctx, cfg.Postgres.DSN)
	case StorageMongo:
		return mongo.Open(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
