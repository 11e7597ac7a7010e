package repository

import (
	"context"
	"sync"
	"time"
)

// cacheItem is a stored payload. A zero deadline never expires.
type cacheItem struct {
	payload  []byte
	deadline time.Time
}

func (it cacheItem) expiredAt(now time.Time) bool {
	return !it.deadline.IsZero() && now.After(it.deadline)
}

// memoryCacheStore keeps payloads in process. It is the durable tier for
// single-instance runs and tests; expired items are dropped when read.
type memoryCacheStore struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

func NewMemoryCacheStore() CacheStore {
	return &memoryCacheStore{
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
}

func (s *memoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := cacheItem{payload: append([]byte(nil), value...)}
	if ttl > 0 {
		it.deadline = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

func (s *memoryCacheStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	if it.expiredAt(s.now()) {
		delete(s.items, key)
		return nil, nil
	}
	return append([]byte(nil), it.payload...), nil
}

func (s *memoryCacheStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Keys lists live keys and drops the expired ones it meets.
func (s *memoryCacheStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]string, 0, len(s.items))
	for k, it := range s.items {
		if it.expiredAt(now) {
			delete(s.items, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memoryCacheStore) Clear(_ context.Context) error {
	s.mu.Lock()
	clear(s.items)
	s.mu.Unlock()
	return nil
}
