package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gridrank/internal/platform/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "backups")
	cases := []struct {
		name string
		cfg  config.BlobConfig
		want Driver
	}{
		{"default", config.BlobConfig{FSRoot: root}, DriverFilesystem},
		{"fs", config.BlobConfig{Driver: "fs", FSRoot: root}, DriverFilesystem},
		{"memory", config.BlobConfig{Driver: "memory"}, DriverMemory},
		{"s3", config.BlobConfig{Driver: "s3", S3: config.S3Config{Bucket: "backups", Region: "us-east-1", Endpoint: "http://127.0.0.1:9000", UsePathStyle: true}}, DriverS3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.Driver())
			}
		})
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, config.BlobConfig{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.BlobConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestFacadeErrorsMatchDrivers(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
