//go:build js && wasm

package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/syumai/workers/cloudflare/kv"
)

// KV rejects expirations shorter than a minute; such tokens are not cached.
const minKVTTLSeconds = 60

// CloudflareKV stores tokens in a Workers KV namespace
type CloudflareKV struct {
	kvStore *kv.Namespace
}

// NewCloudflareKV binds to the KV namespace configured in wrangler.toml
func NewCloudflareKV(binding string) (*CloudflareKV, error) {
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKV{kvStore: kvStore}, nil
}

// Get retrieves key from KV. KV handles expiry itself.
func (c *CloudflareKV) Get(_ context.Context, key string) (string, bool, error) {
	value, err := c.kvStore.GetString(key, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Set writes key to KV with an expiration TTL
func (c *CloudflareKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	seconds := int(ttl / time.Second)
	if seconds < minKVTTLSeconds {
		if err := c.kvStore.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %s from KV: %w", key, err)
		}
		return nil
	}

	if err := c.kvStore.PutString(key, value, &kv.PutOptions{ExpirationTTL: seconds}); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}
