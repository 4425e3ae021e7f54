// Package storage holds the content stores that uploaded asset bytes are written to.
// Two backends exist: a local directory served by the API itself, and an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when no object exists under the key.
	ErrNotFound = errors.New("object not found")
	// ErrObjectExists is returned by stores that refuse to overwrite an existing key.
	ErrObjectExists = errors.New("object already exists")
	// ErrInvalidKey is returned for empty keys or keys escaping the store root.
	ErrInvalidKey = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set it to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
// Location is the server-side address: a filesystem path or s3://bucket/key.
type ObjectInfo struct {
	Key          string
	Location     string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the content store used by the ingest pipeline.
type Storage interface {
	// Put writes an object under key. Implementations may refuse to overwrite
	// an existing key with ErrObjectExists.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a URL the object can be downloaded from without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
