// Package cache stores serialized market payloads under TTL'd keys. All
// backends share one contract so a deployment can run on process memory
// alone or put a Redis tier behind it without touching callers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the storage contract shared by every backend. Values are
// serialized on write: strings pass through verbatim, everything else is
// JSON-encoded. Get mirrors that on read.
type Service interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// Key joins a dataset prefix and an identifier, e.g. Key("bars", "sh600519").
func Key(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}
