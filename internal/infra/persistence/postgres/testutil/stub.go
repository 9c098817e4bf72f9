// Package testutil provides a recording stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StubConn records every statement the store sends. Queries return no rows;
// inserts are kept per table so tests can inspect the bound arguments.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Queries    []string
	Inserts    map[string][][]any
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	Commits    int
	Rollbacks  int
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Inserts: make(map[string][][]any)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if table, ok := insertTable(query); ok {
		values := make([]any, len(args))
		for i, a := range args {
			values[i] = a.Value
		}
		c.Inserts[table] = append(c.Inserts[table], values)
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, query)
	return &stubRows{cols: selectColumns(query)}, nil
}

// ExecsContaining returns the recorded statements that contain fragment.
func (c *StubConn) ExecsContaining(fragment string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, stmt := range c.Execs {
		if strings.Contains(stmt, fragment) {
			out = append(out, stmt)
		}
	}
	return out
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
}

func (r *stubRows) Columns() []string        { return r.cols }
func (r *stubRows) Close() error             { return nil }
func (r *stubRows) Next([]driver.Value) error { return io.EOF }

func insertTable(query string) (string, bool) {
	fields := strings.Fields(query)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "INSERT") || !strings.EqualFold(fields[1], "INTO") {
		return "", false
	}
	table := fields[2]
	if i := strings.Index(table, "("); i >= 0 {
		table = table[:i]
	}
	return strings.ToLower(table), true
}

func selectColumns(query string) []string {
	lower := strings.ToLower(query)
	start := strings.Index(lower, "select ")
	end := strings.Index(lower, " from ")
	if start == -1 || end == -1 || end < start {
		return []string{"id"}
	}
	parts := strings.Split(query[start+len("select "):end], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.ToLower(strings.TrimSpace(p)))
	}
	return cols
}
