package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem[V any] struct {
	entry     Entry[V]
	expiresAt time.Time
}

func (i memoryItem[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore is a bounded in-process LRU with per-entry expiry
type MemoryStore[V any] struct {
	items *lru.Cache[string, memoryItem[V]]
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most maxEntries keys
func NewMemoryStore[V any](maxEntries int) (*MemoryStore[V], error) {
	items, err := lru.New[string, memoryItem[V]](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}
	return &MemoryStore[V]{items: items, now: time.Now}, nil
}

// Get implements Store
func (s *MemoryStore[V]) Get(_ context.Context, key string) (Entry[V], error) {
	item, ok := s.items.Get(key)
	if !ok {
		return Entry[V]{}, ErrMiss
	}
	if item.expired(s.now()) {
		s.items.Remove(key)
		return Entry[V]{}, ErrMiss
	}
	return item.entry, nil
}

// Set implements Store
func (s *MemoryStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	now := s.now()
	item := memoryItem[V]{entry: Entry[V]{Value: value, CachedAt: now}}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	s.items.Add(key, item)
	return nil
}

// Delete implements Store
func (s *MemoryStore[V]) Delete(_ context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

// Len returns the number of stored keys, including expired ones not yet evicted
func (s *MemoryStore[V]) Len() int {
	return s.items.Len()
}
