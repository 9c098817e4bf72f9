package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"gridrank/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	info, err := store.Put(ctx, "season/2020.json", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"events": "6"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "season/2020.json" || info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "season/2020.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	got, rc, err := store.Get(ctx, "season/2020.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "hello" || got.ETag != info.ETag || got.Metadata["events"] != "6" || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %+v %q", got, b)
	}

	list, err := store.List(ctx, "season/")
	if err != nil || len(list) != 1 || list[0].Key != "season/2020.json" {
		t.Fatalf("unexpected list %v %+v", err, list)
	}
	ok, err := store.Delete(ctx, "season/2020.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "season/2020.json"); err != nil || ok {
		t.Fatalf("second delete should report a missing blob: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "season/2020.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "../escape", "/abs", "a/../b", "x.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStoreFailedPutLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad.bin", errorReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected copy error")
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed put left %d files", len(entries))
	}
}

func TestStoreListOrderAndPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for i := 2; i >= 0; i-- {
		key := "folder/f" + strconv.Itoa(i) + ".json"
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("data")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if _, err := store.Put(ctx, "other.json", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := store.List(ctx, "folder/")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	for i, info := range list {
		if info.Key != "folder/f"+strconv.Itoa(i)+".json" {
			t.Fatalf("unexpected order %+v", list)
		}
	}
	if all, _ := store.List(ctx, ""); len(all) != 4 {
		t.Fatalf("expected four blobs, got %d", len(all))
	}
}

func TestStoreCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	data := filepath.Join(store.Root(), "bad.json")
	if err := os.WriteFile(data, []byte("data"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(data+metaSuffix, []byte("{"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list error on corrupt sidecar")
	}
	if _, _, err := store.Get(ctx, "bad.json"); err == nil {
		t.Fatalf("expected get error on corrupt sidecar")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "afile")
	if err := os.WriteFile(filePath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := New(filePath); err == nil {
		t.Fatalf("expected error when root is a file")
	}
}
