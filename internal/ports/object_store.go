package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectExists     = errors.New("object already exists")
	ErrObjectNotFound   = errors.New("object not found")
	ErrNotAuthenticated = errors.New("no authenticated owner")
)

// ObjectRef identifies a stored object.
type ObjectRef struct {
	Key  string // full key, "<ownerID>/<fileName>"
	Size int64
}

// ObjectStore holds the raw image payloads, namespaced per owner. Objects are
// write-once: re-uploading an existing key fails with ErrObjectExists.
type ObjectStore interface {
	Upload(ctx context.Context, ownerID, fileName string, payload []byte) (ObjectRef, error)

	// SignedURL returns a time-limited retrieval URL for an existing object.
	SignedURL(ctx context.Context, ownerID, fileName string, ttl time.Duration) (string, error)

	Delete(ctx context.Context, ownerID, fileName string) error
}
