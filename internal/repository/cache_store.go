package repository

import (
	"context"
	"time"
)

// CacheStore is the durable tier of the cache: a flat key -> bytes mapping.
// Implementations: Redis, Postgres, or in-memory (tests / single instance).
// Get returns (nil, nil) on a miss.
type CacheStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
