package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghmirror_listing_failed_total",
			Help: "Total number of failed account listings",
		},
		[]string{"kind"},
	)

	ListingCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghmirror_listing_count_total",
			Help: "Total number of account listings",
		},
		[]string{"kind"},
	)

	ListingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghmirror_listing_duration_seconds",
			Help:    "Account listing duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	ItemsListed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ghmirror_items_listed",
			Help: "Number of items owned by the account at the last listing",
		},
		[]string{"kind"},
	)
)

// ListingStarted records the start of an account listing and returns
// the start time for the matching ListingSucceeded call.
func ListingStarted(kind string) time.Time {
	ListingCount.WithLabelValues(kind).Inc()
	return time.Now()
}

func ListingSucceeded(kind string, items int, started time.Time) {
	ListingDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	ItemsListed.WithLabelValues(kind).Set(float64(items))
}

func ListingFailure(kind string) {
	ListingFailed.WithLabelValues(kind).Inc()
}
