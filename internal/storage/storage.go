// Package storage defines the interface for uploaded-file storage.
// The local implementation writes under the upload directory; the MinIO
// implementation targets any S3-compatible bucket. Both are read back through
// Open so public URLs keep the same shape regardless of backend.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are not a plain, visible file name.
var ErrInvalidKey = errors.New("invalid object key")

// Object describes a stored file after a successful Put.
type Object struct {
	Key  string
	Size int64
	ETag string // quoted, ready for the ETag header
}

// File is an open stored object, seekable for range requests.
type File struct {
	io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Storage is the interface for writing and reading uploaded files.
type Storage interface {
	// Put streams r to the store under key. The object becomes visible only
	// once the whole stream has been received.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
	// Open returns a reader for the object at key, or ErrNotFound.
	Open(ctx context.Context, key string) (*File, error)
}

// ValidKey reports whether key is usable as a flat object name: non-empty,
// no separators, not dot-prefixed.
func ValidKey(key string) bool {
	if key == "" || key[0] == '.' {
		return false
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '/', '\\', 0:
			return false
		}
	}
	return true
}
