package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_realtime_events_total",
		Help: "Raw change events by pipeline outcome",
	}, []string{"outcome"})
	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_realtime_connect_total",
		Help: "Connection and channel subscribe attempts by result",
	}, []string{"stage", "result"})
)
