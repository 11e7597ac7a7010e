package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type getOptions struct {
	durable bool
}

// GetOption tunes a single Get.
type GetOption func(*getOptions)

// MemoryOnlyRead skips the durable fallback on a memory miss.
func MemoryOnlyRead() GetOption {
	return func(o *getOptions) { o.durable = false }
}

type putOptions struct {
	ttl     time.Duration
	durable bool
}

// PutOption tunes a single Put.
type PutOption func(*putOptions)

// WithTTL overrides the manager's default TTL.
func WithTTL(ttl time.Duration) PutOption {
	return func(o *putOptions) { o.ttl = ttl }
}

// MemoryOnlyWrite keeps the value out of the durable tier.
func MemoryOnlyWrite() PutOption {
	return func(o *putOptions) { o.durable = false }
}

// Get returns the cached value for key. Expired, missing, corrupt and
// wrongly typed entries are all reported as a miss; cache failures are never
// returned to the caller.
func Get[T any](ctx context.Context, m *Manager, key string, codec Codec[T], opts ...GetOption) (T, bool) {
	o := getOptions{durable: true}
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return getLocked(ctx, m, key, codec, o.durable)
}

func getLocked[T any](ctx context.Context, m *Manager, key string, codec Codec[T], durable bool) (T, bool) {
	var zero T
	now := time.Now()

	if e, ok := m.memory.Get(key); ok {
		if !e.Expired(now) {
			if v, ok := e.Data.(T); ok {
				lookups.WithLabelValues("memory_hit").Inc()
				return v, true
			}
		} else {
			m.memory.Remove(key)
		}
	}

	if !durable || m.durable == nil {
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}

	raw, err := m.durable.Get(ctx, key)
	if err != nil {
		durableErrors.WithLabelValues("get").Inc()
		m.logger.Warn("durable read failed", zap.String("key", key), zap.Error(err))
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	if raw == nil {
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}

	env, err := unmarshalEnvelope(raw)
	if err != nil || env.expired(now) {
		if err != nil {
			m.logger.Debug("corrupt durable entry evicted", zap.String("key", key), zap.Error(err))
		}
		m.removeLocked(ctx, key)
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	v, err := codec.Decode(env.Data)
	if err != nil {
		m.logger.Debug("undecodable durable entry evicted", zap.String("key", key), zap.Error(err))
		m.removeLocked(ctx, key)
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}

	m.memory.Add(key, Entry{Data: v, Timestamp: env.Timestamp, TTL: env.TTL})
	lookups.WithLabelValues("durable_hit").Inc()
	return v, true
}

// Put stores value under key. The memory tier is always written; the
// durable write is best effort and its failures are only logged.
func Put[T any](ctx context.Context, m *Manager, key string, value T, codec Codec[T], opts ...PutOption) {
	o := putOptions{ttl: m.defaultTTL, durable: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	putLocked(ctx, m, key, value, codec, o)
}

func putLocked[T any](ctx context.Context, m *Manager, key string, value T, codec Codec[T], o putOptions) {
	now := time.Now()
	m.memory.Add(key, Entry{Data: value, Timestamp: now, TTL: o.ttl})

	if !o.durable || m.durable == nil {
		return
	}
	data, err := codec.Encode(value)
	if err != nil {
		durableErrors.WithLabelValues("encode").Inc()
		m.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	raw, err := marshalEnvelope(data, now, o.ttl)
	if err != nil {
		durableErrors.WithLabelValues("encode").Inc()
		m.logger.Warn("cache envelope encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := m.durable.Set(ctx, key, raw, o.ttl); err != nil {
		durableErrors.WithLabelValues("set").Inc()
		m.logger.Warn("durable write failed", zap.String("key", key), zap.Error(err))
	}
}

// GetOrPut returns the valid cached value for key, or calls fetch, caches
// its result with ttl and returns it. Concurrent callers for the same key
// share one fetch, which runs detached from any single caller: a caller
// whose ctx ends gets ctx.Err() alone, and the fetch is canceled only once
// every caller has given up. A fetch error is returned as is and nothing is
// cached. Nothing is cached either when no caller is left to take the
// result, or when key was invalidated while the fetch ran.
func GetOrPut[T any](
	ctx context.Context,
	m *Manager,
	key string,
	ttl time.Duration,
	codec Codec[T],
	fetch func(context.Context) (T, error),
) (T, error) {
	var zero T
	if v, ok := Get(ctx, m, key, codec); ok {
		return v, nil
	}

	c, w := m.join(ctx, key)
	ch := m.flight.DoChan(key, func() (any, error) {
		return fill(m, key, c, ttl, codec, fetch)
	})
	stop := context.AfterFunc(ctx, func() { m.leave(key, c, w) })
	defer func() {
		if stop() {
			m.leave(key, c, w)
		}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, ErrTypeMismatch
		}
		return v, nil
	}
}

func fill[T any](
	m *Manager,
	key string,
	c *call,
	ttl time.Duration,
	codec Codec[T],
	fetch func(context.Context) (T, error),
) (any, error) {
	m.mu.Lock()
	cached, ok := getLocked(c.ctx, m, key, codec, true)
	since := m.seq
	m.mu.Unlock()
	if ok {
		m.finish(key, c)
		return cached, nil
	}

	v, err := fetch(c.ctx)
	wanted := m.finish(key, c)
	if err != nil {
		fetches.WithLabelValues("error").Inc()
		return nil, err
	}
	fetches.WithLabelValues("ok").Inc()
	if !wanted {
		return nil, context.Canceled
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidatedLocked(key, since) {
		fetches.WithLabelValues("stale").Inc()
		m.logger.Debug("fetched value invalidated before store", zap.String("key", key))
		return v, nil
	}
	putLocked(c.ctx, m, key, v, codec, putOptions{ttl: ttl, durable: true})
	return v, nil
}
