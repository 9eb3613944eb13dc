package cache

import (
	"context"
)

// Store defines the interface for the TTL caches the client composes:
// the single-slot credential cache and the read-through group and user
// caches. The generic type T is the cached value type.
type Store[T any] interface {
	// Get retrieves a value from the cache.
	// Returns the value, whether it was found, and any error.
	Get(ctx context.Context, key string) (T, bool, error)

	// Set stores a value in the cache.
	Set(ctx context.Context, key string, value T) error

	// Invalidate removes a value from the cache, regardless of its age.
	Invalidate(ctx context.Context, key string) error

	// Lookup returns the cached value for key, fetching and storing it
	// on a miss. Fetch failures propagate to the caller and are never
	// cached.
	Lookup(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error)
}
