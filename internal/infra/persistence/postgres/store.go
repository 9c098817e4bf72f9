// Package postgres opens the relational DataSource on a PostgreSQL server
// through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"gridrank/internal/infra/persistence/relational"
)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with the config defaults.
	defaultDSN = "postgres://localhost/gridrank?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect describes PostgreSQL to the relational adapter.
func Dialect() relational.Dialect {
	return relational.Dialect{
		Name:            "postgres",
		Numbered:        true,
		FloatType:       "DOUBLE PRECISION",
		UniqueViolation: isUniqueViolation,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Open connects to dsn (defaultDSN when empty), checks the connection and
// applies the schema.
func Open(ctx context.Context, dsn string) (*relational.Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := relational.New(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
