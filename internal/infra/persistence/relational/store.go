package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

var _ domain.DataSource = (*Store)(nil)

// Store is a DataSource over a SQL database. Each Begin opens one database
// transaction that the returned handler writes into.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db and applies the schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Repositories returns lookups over committed rows.
func (s *Store) Repositories(bus eventbus.Publisher) domain.Repositories {
	return newRepositories(conn{q: s.db, d: s.dialect}, bus)
}

// Begin opens a database transaction.
func (s *Store) Begin(ctx context.Context) (domain.TransactionalEventHandler, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", s.dialect.Name, err)
	}
	return &transaction{c: conn{q: tx, d: s.dialect}, tx: tx}, nil
}

// Drop deletes every row in one transaction. Tables stay in place.
func (s *Store) Drop(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, table := range dropOrder {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries written with ? placeholders against a *sql.DB or *sql.Tx.
type conn struct {
	q querier
	d Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.Rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.Rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

func queryOne[T any](ctx context.Context, c conn, scan func(scanner) (T, error), query string, args ...any) (*T, error) {
	v, err := scan(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryMany reads every row before returning so the connection is free for
// follow-up queries inside a transaction.
func queryMany[T any](ctx context.Context, c conn, scan func(scanner) (T, error), query string, args ...any) ([]*T, error) {
	rows, err := c.q.QueryContext(ctx, c.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
