package ports

import (
	"context"
	"time"
)

// Cache is a generic key-value capability. The extraction adapter uses it to
// skip repeat OCR calls for byte-identical images.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
