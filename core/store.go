package core

import (
	"context"
	"time"
)

// TokenStore is the storage contract the token manager caches tenant access
// tokens in. Implementations must be safe for concurrent use.
type TokenStore interface {
	// Get returns the cached value for key. ok is false when the key is
	// missing or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key for ttl. A ttl of zero or less deletes the
	// key; it never means "no expiry".
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
