// Package blob is the entry point to backup storage. Callers depend on Store
// and obtain one from Open; the driver packages under internal/infra/blob are
// wired only here.
package blob

import (
	"context"
	"fmt"

	"gridrank/internal/blob/core"
	"gridrank/internal/infra/blob/fs"
	"gridrank/internal/infra/blob/memory"
	"gridrank/internal/infra/blob/s3"
	"gridrank/internal/platform/config"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem // local directory (default)
	DriverS3         = core.DriverS3         // S3 / MinIO compatible
	DriverMemory     = core.DriverMemory     // in-process (tests)
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Open selects a Store from cfg.Driver, fs when unset.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.UsePathStyle,
			Prefix:    cfg.S3.Prefix,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a Store rooted at dir.
func NewFilesystem(dir string) (Store, error) {
	store, err := fs.New(dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an empty in-process Store.
func NewMemory() Store { return memory.New() }
