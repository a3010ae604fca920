// Package storage defines the uniform object interface served by the
// local filesystem and S3-compatible backends (§4.5).
package storage

import (
	"context"
	"io"
	"time"

	"archivecore.io/core/internal/domain"
)

// PutResult is returned by a successful Put.
type PutResult struct {
	VersionID string
	ETag      string
}

// Backend is the uniform object interface implemented by fsbackend and
// s3backend (§4.5 Operations).
type Backend interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string, metadata map[string]string, storageClass string) (PutResult, error)
	Get(ctx context.Context, key, versionID string) (io.ReadCloser, map[string]string, error)
	Delete(ctx context.Context, key, versionID string) error
	List(ctx context.Context, prefix string, limit, offset int) ([]domain.ObjectDescriptor, error)
	Exists(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	ListVersions(ctx context.Context, key string) ([]domain.Version, error)
	URL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	Name() domain.StorageBackend
}
