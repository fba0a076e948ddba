package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"formsapi/internal/config"
)

// Package storage contains object storage abstractions for form attachments (S3-compatible).
// Implementations must avoid using local disk and rely on streaming I/O only.

// ErrNotConfigured is returned by New when the selected backend lacks credentials, endpoint or bucket.
var ErrNotConfigured = errors.New("storage is not configured")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	URL          string // publicly resolvable reference
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store used to persist uploaded attachments.
// Methods use context and streaming readers; no local disk is used.
type Storage interface {
	// Put uploads an object under the given key and returns its info, including the public URL.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	switch cfg.Driver {
	case "s3":
		return NewS3(ctx, cfg.S3)
	case "minio", "":
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// tracedTransport records a client span for every call made to the object store.
func tracedTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone())
}
