// Package cache provides the typed key/value stores behind every resolver
// and a read-through helper that ages entries and falls back to stale data.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache: miss")

// Entry is a cached value with the time it was stored
type Entry[V any] struct {
	Value    V         `json:"value"`
	CachedAt time.Time `json:"cachedAt"`
}

// Store is a goroutine-safe typed cache
type Store[V any] interface {
	// Get returns ErrMiss when nothing usable is stored under key
	Get(ctx context.Context, key string) (Entry[V], error)
	// Set stores value; ttl 0 keeps it until evicted or overwritten
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
