package database

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/event"
)

var (
	mongoCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongodb_commands_total",
			Help: "Total number of MongoDB commands by name and outcome",
		},
		[]string{"command", "outcome"},
	)

	mongoCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongodb_command_duration_seconds",
			Help:    "MongoDB command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// NewCommandMonitor returns a mongo event.CommandMonitor that exports
// per-command counters and duration histograms to Prometheus. Command names
// are driver-level (find, insert, update, delete), so label cardinality
// stays bounded.
func NewCommandMonitor() *event.CommandMonitor {
	// The started map correlates request IDs across the monitor callbacks;
	// it only tracks names so no command payloads are retained.
	var mu sync.Mutex
	started := make(map[int64]string)

	return &event.CommandMonitor{
		Started: func(_ context.Context, evt *event.CommandStartedEvent) {
			mu.Lock()
			started[evt.RequestID] = evt.CommandName
			mu.Unlock()
		},
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			mu.Lock()
			delete(started, evt.RequestID)
			mu.Unlock()
			mongoCommandsTotal.WithLabelValues(evt.CommandName, "success").Inc()
			mongoCommandDuration.WithLabelValues(evt.CommandName).Observe(evt.Duration.Seconds())
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			mu.Lock()
			delete(started, evt.RequestID)
			mu.Unlock()
			mongoCommandsTotal.WithLabelValues(evt.CommandName, "failure").Inc()
			mongoCommandDuration.WithLabelValues(evt.CommandName).Observe(evt.Duration.Seconds())
		},
	}
}
