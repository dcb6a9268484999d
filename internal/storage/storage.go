// Package storage persists task solution files behind a small capability
// interface so the lifecycle engine never touches a concrete filesystem.
//
// Two drivers are available:
//   - "local": files under a root directory (default "uploads")
//   - "s3":    S3-compatible object storage
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Fetch when nothing is stored at path.
var ErrNotFound = errors.New("storage: file not found")

// FileStore stores opaque bytes under a key and returns the path to record.
type FileStore interface {
	// Store writes data under key, overwriting anything already there.
	Store(ctx context.Context, key string, data []byte) (path string, err error)
	// Fetch returns the bytes previously stored at path.
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Config selects and configures a driver.
type Config struct {
	Driver    string
	LocalRoot string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
}

// New returns the FileStore for cfg.Driver.
func New(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalRoot), nil
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q (supported: local, s3)", cfg.Driver)
	}
}
