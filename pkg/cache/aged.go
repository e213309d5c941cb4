package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Result is a value served by Aged
type Result[V any] struct {
	Value    V
	CachedAt time.Time
	// Stale is set when the value is a cached fallback after a failed fetch
	Stale bool
	// Err is the fetch error behind a stale value
	Err error
}

// AgedConfig configures an Aged read-through
type AgedConfig struct {
	// Name labels metrics and logs
	Name string
	// MaxAge is how long a stored entry is served without refetching. 0 always refetches.
	MaxAge time.Duration
	// TTL is passed to the store on write. 0 keeps entries until overwritten.
	TTL    time.Duration
	Logger *zap.Logger
}

// Aged serves entries younger than MaxAge, refetches older ones through a
// single flight per key and falls back to the stored entry when the fetch fails.
type Aged[V any] struct {
	store  Store[V]
	cfg    AgedConfig
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

// NewAged wraps store
func NewAged[V any](store Store[V], cfg AgedConfig) *Aged[V] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aged[V]{
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("cache", cfg.Name)),
		now:    time.Now,
	}
}

// Peek returns the stored entry regardless of age
func (a *Aged[V]) Peek(ctx context.Context, key string) (Entry[V], bool) {
	entry, err := a.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			a.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return Entry[V]{}, false
	}
	return entry, true
}

// Get returns a fresh entry, or fetches, stores and returns a new value.
// When fetch fails and an entry exists it is returned with Stale set.
func (a *Aged[V]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (Result[V], error) {
	cached, ok := a.Peek(ctx, key)
	if ok && a.cfg.MaxAge > 0 && a.now().Sub(cached.CachedAt) <= a.cfg.MaxAge {
		hitsTotal.WithLabelValues(a.cfg.Name).Inc()
		return Result[V]{Value: cached.Value, CachedAt: cached.CachedAt}, nil
	}
	missesTotal.WithLabelValues(a.cfg.Name).Inc()

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		value, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		now := a.now()
		if err := a.store.Set(ctx, key, value, a.cfg.TTL); err != nil {
			a.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
		return Result[V]{Value: value, CachedAt: now}, nil
	})
	if err == nil {
		return v.(Result[V]), nil
	}

	if ok {
		staleTotal.WithLabelValues(a.cfg.Name).Inc()
		a.logger.Warn("Serving stale cache entry", zap.String("key", key), zap.Error(err))
		return Result[V]{Value: cached.Value, CachedAt: cached.CachedAt, Stale: true, Err: err}, nil
	}

	var zero Result[V]
	return zero, err
}

// Set stores a value directly
func (a *Aged[V]) Set(ctx context.Context, key string, value V) {
	if err := a.store.Set(ctx, key, value, a.cfg.TTL); err != nil {
		a.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
