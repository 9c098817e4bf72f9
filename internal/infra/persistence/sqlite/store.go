// Package sqlite opens the relational DataSource on an embedded sqlite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gridrank/internal/infra/persistence/relational"
)

const (
	driverName  = "sqlite"
	defaultPath = "gridrank.db"
)

// Dialect describes sqlite to the relational adapter.
func Dialect() relational.Dialect {
	return relational.Dialect{
		Name:            "sqlite",
		FloatType:       "REAL",
		UniqueViolation: isUniqueViolation,
	}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// DSN builds the connection string for path. Writers wait on a locked
// database instead of failing, and WAL lets readers run beside a writer.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating when needed) the sqlite database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*relational.Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store, err := relational.New(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
