package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_cache_lookups_total",
		Help: "Cache lookups by outcome (memory_hit, durable_hit, miss)",
	}, []string{"result"})
	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_cache_fetches_total",
		Help: "Fetcher invocations on cache miss by outcome (ok, error, stale)",
	}, []string{"result"})
	durableErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_cache_durable_errors_total",
		Help: "Swallowed durable tier failures by operation",
	}, []string{"op"})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_cache_expired_evictions_total",
		Help: "Entries removed by expiry sweeps",
	})
)
