package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

type pebbleRecord[V any] struct {
	Entry     Entry[V]  `json:"entry"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// PebbleStore persists entries on disk so the last good data survives a restart
type PebbleStore[V any] struct {
	db     *pebble.DB
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewPebbleStore creates a store on an open database; keys are namespaced by prefix
func NewPebbleStore[V any](db *pebble.DB, prefix string, logger *zap.Logger) *PebbleStore[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PebbleStore[V]{db: db, prefix: prefix, logger: logger, now: time.Now}
}

func (s *PebbleStore[V]) key(key string) []byte {
	return []byte(s.prefix + key)
}

// Get implements Store
func (s *PebbleStore[V]) Get(_ context.Context, key string) (Entry[V], error) {
	value, closer, err := s.db.Get(s.key(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Entry[V]{}, ErrMiss
		}
		return Entry[V]{}, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	var record pebbleRecord[V]
	if err := json.Unmarshal(value, &record); err != nil {
		return Entry[V]{}, fmt.Errorf("pebble entry %s: %w", key, err)
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		if err := s.db.Delete(s.key(key), pebble.NoSync); err != nil {
			s.logger.Debug("Failed to drop expired pebble entry", zap.String("key", s.prefix+key), zap.Error(err))
		}
		return Entry[V]{}, ErrMiss
	}
	return record.Entry, nil
}

// Set implements Store
func (s *PebbleStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	now := s.now()
	record := pebbleRecord[V]{Entry: Entry[V]{Value: value, CachedAt: now}}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.db.Set(s.key(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (s *PebbleStore[V]) Delete(_ context.Context, key string) error {
	if err := s.db.Delete(s.key(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", key, err)
	}
	return nil
}
