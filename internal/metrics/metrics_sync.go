package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghmirror_sync_failed_total",
			Help: "Total number of failed item synchronizations",
		},
		[]string{"kind"},
	)

	SyncCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghmirror_sync_count_total",
			Help: "Total number of item synchronizations",
		},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghmirror_sync_duration_seconds",
			Help:    "Item synchronization duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"kind", "name"},
	)

	LastSyncStart = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ghmirror_last_sync_start_timestamp",
			Help: "Unix timestamp of when the last synchronization of an item started",
		},
		[]string{"kind", "name"},
	)

	LastSyncEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ghmirror_last_sync_end_timestamp",
			Help: "Unix timestamp of when the last synchronization of an item ended",
		},
		[]string{"kind", "name"},
	)
)

// ItemSyncStarted records the start of an item synchronization and
// returns the start time for the matching ItemSyncSucceeded call.
func ItemSyncStarted(kind, name string) time.Time {
	now := time.Now()
	SyncCount.Inc()
	LastSyncStart.WithLabelValues(kind, name).Set(float64(now.Unix()))
	return now
}

func ItemSyncSucceeded(kind, name string, started time.Time) {
	now := time.Now()
	SyncDuration.WithLabelValues(kind, name).Observe(now.Sub(started).Seconds())
	LastSyncEnd.WithLabelValues(kind, name).Set(float64(now.Unix()))
}

func ItemSyncFailed(kind string) {
	SyncFailed.WithLabelValues(kind).Inc()
}
