// Package cache implements a two-tier TTL cache: a bounded in-memory tier
// in front of a durable CacheStore, with coalesced get-or-fetch.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"budgetapp/chatsync/internal/repository"
)

const (
	defaultTTL        = 5 * time.Minute
	defaultMemorySize = 4096
)

var ErrTypeMismatch = errors.New("cached value has unexpected type")

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	DefaultTTL      time.Duration
	MemorySize      int
	CleanupInterval time.Duration
	Logger          *zap.Logger
}

// Manager owns both cache tiers. Every read-modify-write of tier state runs
// under mu. GetOrPut additionally serializes fetches per key, so distinct
// keys fetch in parallel while one key never has two fetches in flight.
// Invalidations are logged under mu so a fetch that overlaps one does not
// store its older result.
type Manager struct {
	mu            sync.Mutex
	memory        *lru.Cache[string, Entry]
	durable       repository.CacheStore
	seq           uint64
	invalidations []invalidation

	flight  singleflight.Group
	callsMu sync.Mutex
	calls   map[string]*call

	defaultTTL      time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
}

// New builds a manager over durable. A nil durable store gives a
// memory-only cache.
func New(durable repository.CacheStore, opts Options) (*Manager, error) {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaultTTL
	}
	if opts.MemorySize <= 0 {
		opts.MemorySize = defaultMemorySize
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	memory, err := lru.New[string, Entry](opts.MemorySize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		memory:          memory,
		durable:         durable,
		calls:           make(map[string]*call),
		defaultTTL:      opts.DefaultTTL,
		cleanupInterval: opts.CleanupInterval,
		logger:          opts.Logger.Named("cache"),
	}, nil
}

// DefaultTTL is the TTL applied when a put does not name one.
func (m *Manager) DefaultTTL() time.Duration { return m.defaultTTL }

// Remove deletes key from both tiers. Removing a missing key is a no-op.
func (m *Manager) Remove(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(key, false)
	m.removeLocked(ctx, key)
}

func (m *Manager) removeLocked(ctx context.Context, key string) {
	m.memory.Remove(key)
	if m.durable == nil {
		return
	}
	if err := m.durable.Delete(ctx, key); err != nil {
		durableErrors.WithLabelValues("delete").Inc()
		m.logger.Warn("durable delete failed", zap.String("key", key), zap.Error(err))
	}
}

// RemovePrefix deletes every key starting with prefix from both tiers and
// returns how many distinct keys were removed.
func (m *Manager) RemovePrefix(ctx context.Context, prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(prefix, true)

	keys := make(map[string]struct{})
	for _, k := range m.memory.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys[k] = struct{}{}
		}
	}
	if m.durable != nil {
		durableKeys, err := m.durable.Keys(ctx)
		if err != nil {
			durableErrors.WithLabelValues("keys").Inc()
			m.logger.Warn("durable key listing failed", zap.Error(err))
		}
		for _, k := range durableKeys {
			if strings.HasPrefix(k, prefix) {
				keys[k] = struct{}{}
			}
		}
	}
	for k := range keys {
		m.removeLocked(ctx, k)
	}
	return len(keys)
}

// ClearAll empties both tiers.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked("", true)

	m.memory.Purge()
	if m.durable == nil {
		return
	}
	if err := m.durable.Clear(ctx); err != nil {
		durableErrors.WithLabelValues("clear").Inc()
		m.logger.Warn("durable clear failed", zap.Error(err))
	}
}

// ClearExpired sweeps both tiers and returns the number of entries removed.
// Durable entries that fail to decode count as expired.
func (m *Manager) ClearExpired(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, k := range m.memory.Keys() {
		if e, ok := m.memory.Peek(k); ok && e.Expired(now) {
			m.memory.Remove(k)
			removed++
		}
	}

	if m.durable != nil {
		keys, err := m.durable.Keys(ctx)
		if err != nil {
			durableErrors.WithLabelValues("keys").Inc()
			m.logger.Warn("durable key listing failed", zap.Error(err))
		}
		for _, k := range keys {
			raw, err := m.durable.Get(ctx, k)
			if err != nil || raw == nil {
				continue
			}
			env, err := unmarshalEnvelope(raw)
			if err == nil && !env.expired(now) {
				continue
			}
			if err := m.durable.Delete(ctx, k); err != nil {
				durableErrors.WithLabelValues("delete").Inc()
				continue
			}
			removed++
		}
	}

	evictions.Add(float64(removed))
	return removed
}

// Run sweeps expired entries every cleanup interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.ClearExpired(ctx); n > 0 {
				m.logger.Debug("expired entries evicted", zap.Int("count", n))
			}
		}
	}
}
