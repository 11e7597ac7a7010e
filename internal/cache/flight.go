package cache

import (
	"context"
	"strings"
)

// maxInvalidations bounds the log a finished fetch is checked against
// before its result is stored.
const maxInvalidations = 256

type invalidation struct {
	seq    uint64
	key    string
	prefix bool
}

// recordLocked notes that key, or every key under it when prefix is set,
// was invalidated.
func (m *Manager) recordLocked(key string, prefix bool) {
	m.seq++
	m.invalidations = append(m.invalidations, invalidation{seq: m.seq, key: key, prefix: prefix})
	if n := len(m.invalidations) - maxInvalidations; n > 0 {
		m.invalidations = append(m.invalidations[:0], m.invalidations[n:]...)
	}
}

// invalidatedLocked reports whether key was invalidated after since. Once
// the log no longer reaches back to since, every key counts as invalidated.
func (m *Manager) invalidatedLocked(key string, since uint64) bool {
	if since == m.seq {
		return false
	}
	if m.invalidations[0].seq > since+1 {
		return true
	}
	for _, inv := range m.invalidations {
		if inv.seq <= since {
			continue
		}
		if inv.key == key || (inv.prefix && strings.HasPrefix(key, inv.key)) {
			return true
		}
	}
	return false
}

// call is one in-flight fetch. Its context is detached from every caller
// and is canceled only when the last waiting caller has given up.
type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters map[*waiter]struct{}
	done    bool
}

type waiter struct {
	ctx context.Context
}

func (m *Manager) join(ctx context.Context, key string) (*call, *waiter) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	c, ok := m.calls[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: fctx, cancel: cancel, waiters: make(map[*waiter]struct{})}
		m.calls[key] = c
	}
	w := &waiter{ctx: ctx}
	c.waiters[w] = struct{}{}
	return c, w
}

// leave drops w from c. When nobody is left waiting on an unfinished fetch,
// the fetch is canceled and the next caller starts a fresh one.
func (m *Manager) leave(key string, c *call, w *waiter) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	delete(c.waiters, w)
	if len(c.waiters) > 0 {
		return
	}
	c.cancel()
	if m.calls[key] == c {
		delete(m.calls, key)
		if !c.done {
			m.flight.Forget(key)
		}
	}
}

// finish marks c done and reports whether any caller still wants its result.
func (m *Manager) finish(key string, c *call) bool {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	c.done = true
	if m.calls[key] == c {
		delete(m.calls, key)
	}
	for w := range c.waiters {
		if w.ctx.Err() == nil {
			return true
		}
	}
	return false
}
