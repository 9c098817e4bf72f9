package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBRecordsInsertsAndReturnsNoRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	_, err := conn.ExecContext(ctx, "INSERT INTO teams (id, natural_key, name) VALUES ($1, $2, $3)", []driver.NamedValue{
		{Value: "t1"}, {Value: "Alabama"}, {Value: "Alabama"},
	})
	if err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}
	if got := conn.Inserts["teams"]; len(got) != 1 || got[0][0] != "t1" {
		t.Fatalf("expected teams insert to be recorded, got %v", got)
	}
	if len(conn.ExecsContaining("INSERT INTO teams")) != 1 {
		t.Fatalf("expected recorded statement")
	}

	rows, err := conn.QueryContext(ctx, "SELECT id, name FROM teams WHERE id = $1", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	if cols := rows.Columns(); len(cols) != 2 || cols[1] != "name" {
		t.Fatalf("unexpected columns: %v", cols)
	}
	if err := rows.Next(make([]driver.Value, 2)); err == nil {
		t.Fatalf("expected no rows")
	}
}
