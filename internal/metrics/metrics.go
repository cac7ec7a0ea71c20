// Package metrics exposes the Prometheus collectors of the scorer and the
// collection queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilterOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_filter_outcomes_total",
			Help: "Filter outcomes by filter id and status",
		},
		[]string{"filter", "status"},
	)

	FilterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trust_filter_duration_seconds",
			Help:    "Duration of a single filter run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"filter"},
	)

	FilterFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_filter_failures_total",
			Help: "Filters that ended in skip because of an error, by kind",
		},
		[]string{"filter", "kind"},
	)

	TrustScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trust_score",
			Help:    "Distribution of aggregated trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	ResolverTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_price_resolutions_total",
			Help: "Market price resolutions by answering tier",
		},
		[]string{"tier"},
	)

	PriceSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_price_submissions_total",
			Help: "Accepted crowdsourced sample batches",
		},
	)

	JobsExpanded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_jobs_expanded_total",
			Help: "Collection jobs created or recycled by expansion, by priority",
		},
		[]string{"priority"},
	)

	JobsPicked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_jobs_picked_total",
			Help: "Collection jobs assigned to workers",
		},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_jobs_completed_total",
			Help: "Collection job completions by resulting status",
		},
		[]string{"status"},
	)

	JobsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_jobs_reclaimed_total",
			Help: "Assigned jobs returned to pending after the assignment timeout",
		},
	)

	JobsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collection_jobs_cancelled_total",
			Help: "Jobs cancelled by the low-data breaker",
		},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collection_jobs",
			Help: "Collection jobs per status, refreshed by the maintenance worker",
		},
		[]string{"status"},
	)

	StaleReferences = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "price_references_stale",
			Help: "Price references past their refresh window",
		},
	)

	RegistryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_lookups_total",
			Help: "Company registry lookups by result",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
