package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/algoland-api/internal/config"
	"github.com/cockroachdb/pebble"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend kinds
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

// Backend owns the shared connection behind every typed store
type Backend struct {
	kind       string
	prefix     string
	maxEntries int
	redis      redis.UniversalClient
	pebble     *pebble.DB
	logger     *zap.Logger
}

// NewBackend opens the configured backend
func NewBackend(cfg *config.CacheConfig, logger *zap.Logger) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{
		kind:       cfg.Backend,
		prefix:     cfg.KeyPrefix,
		maxEntries: cfg.MaxEntries,
		logger:     logger,
	}
	if b.kind == "" {
		b.kind = BackendMemory
	}
	if b.maxEntries <= 0 {
		b.maxEntries = 1024
	}

	switch b.kind {
	case BackendMemory:
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		b.redis = client
	case BackendPebble:
		db, err := pebble.Open(cfg.PebblePath, &pebble.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		b.pebble = db
	default:
		return nil, fmt.Errorf("unknown cache backend %q", b.kind)
	}

	logger.Info("Cache backend ready", zap.String("backend", b.kind))
	return b, nil
}

// Kind returns the backend name
func (b *Backend) Kind() string {
	return b.kind
}

// Ping checks that the backend is reachable
func (b *Backend) Ping(ctx context.Context) error {
	switch {
	case b.redis != nil:
		return b.redis.Ping(ctx).Err()
	case b.pebble != nil:
		_, closer, err := b.pebble.Get([]byte(b.prefix + ":ping"))
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return closer.Close()
	}
	return nil
}

// Close releases the backend connection
func (b *Backend) Close() error {
	switch {
	case b.redis != nil:
		return b.redis.Close()
	case b.pebble != nil:
		return b.pebble.Close()
	}
	return nil
}

// NewStore creates a typed store in namespace on backend b
func NewStore[V any](b *Backend, namespace string) (Store[V], error) {
	prefix := namespace + ":"
	if b.prefix != "" {
		prefix = b.prefix + ":" + prefix
	}

	switch b.kind {
	case BackendRedis:
		return NewRedisStore[V](b.redis, prefix), nil
	case BackendPebble:
		return NewPebbleStore[V](b.pebble, prefix, b.logger), nil
	default:
		return NewMemoryStore[V](b.maxEntries)
	}
}
