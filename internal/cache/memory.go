package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-memory TTL cache using otter. Expiry is lazy: an
// entry past its TTL is treated as absent on the next read, no
// background sweep is required.
type Memory[T any] struct {
	cache   *otter.Cache[string, T]
	ttl     time.Duration
	counter *stats.Counter
}

// NewMemory creates a new in-memory cache with the specified TTL and max size.
func NewMemory[T any](ttl time.Duration, maxSize int) (*Memory[T], error) {
	counter := stats.NewCounter()
	cache := otter.Must(&otter.Options[string, T]{
		MaximumSize:      maxSize,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryCreating[string, T](ttl),
	})

	return &Memory[T]{
		cache:   cache,
		ttl:     ttl,
		counter: counter,
	}, nil
}

// Get retrieves a value from the cache.
// Returns the value, whether it was found, and any error.
func (m *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		var zero T
		return zero, false, nil
	}

	return entry.Value, true, nil
}

// Set stores a value in the cache. Entries are replaced as a whole:
// there is no partial update.
func (m *Memory[T]) Set(ctx context.Context, key string, value T) error {
	m.cache.Set(key, value)
	return nil
}

// Invalidate removes a value from the cache, regardless of its age.
func (m *Memory[T]) Invalidate(ctx context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Lookup returns the cached value for key, fetching and storing it on a
// miss. Fetch failures propagate to the caller and are never cached, so
// a failed fetch cannot poison the cache.
//
// The cache is non-locking: concurrent lookups for the same key before
// the first fetch resolves may each issue the fetch, and the last write
// wins. The occasional duplicate fetch is preferred over holding a lock
// across a network call.
func (m *Memory[T]) Lookup(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if value, ok, _ := m.Get(ctx, key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := m.Set(ctx, key, value); err != nil {
		return value, err
	}

	return value, nil
}
