package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/0xmhha/algoland-api/pkg/cache"
)

// AgedStore is a cache.Store that back-dates every write by Age, so cached
// entries can be made to look old without waiting
type AgedStore[V any] struct {
	Age time.Duration

	mu      sync.Mutex
	entries map[string]cache.Entry[V]
}

// NewAgedStore creates a store whose entries are age old when written
func NewAgedStore[V any](age time.Duration) *AgedStore[V] {
	return &AgedStore[V]{Age: age, entries: make(map[string]cache.Entry[V])}
}

// Get implements cache.Store
func (s *AgedStore[V]) Get(_ context.Context, key string) (cache.Entry[V], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return cache.Entry[V]{}, cache.ErrMiss
	}
	return entry, nil
}

// Set implements cache.Store; ttl is ignored
func (s *AgedStore[V]) Set(_ context.Context, key string, value V, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cache.Entry[V]{Value: value, CachedAt: time.Now().Add(-s.Age)}
	return nil
}

// Delete implements cache.Store
func (s *AgedStore[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
