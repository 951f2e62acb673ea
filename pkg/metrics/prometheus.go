package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerFailures *prometheus.CounterVec
	cacheRefreshes   *prometheus.CounterVec
	rateLimitDenied  *prometheus.CounterVec
	delegateCalls    *prometheus.CounterVec
	datasetAge       *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		providerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_provider_failures_total",
				Help: "Total number of upstream provider call failures",
			},
			[]string{"provider", "dataset"},
		),
		cacheRefreshes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_cache_refreshes_total",
				Help: "Total number of dataset cache refresh attempts",
			},
			[]string{"dataset", "outcome"},
		),
		rateLimitDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_rate_limit_denied_total",
				Help: "Total number of requests denied by a rate limiter",
			},
			[]string{"limiter"},
		),
		delegateCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_delegate_calls_total",
				Help: "Total number of reasoning delegate calls by outcome",
			},
			[]string{"outcome"},
		),
		datasetAge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_dataset_age_seconds",
				Help: "Seconds since a cached dataset was last refreshed",
			},
			[]string{"dataset"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordProviderFailure records a failed upstream provider call.
func (r *Recorder) RecordProviderFailure(provider, dataset string) {
	r.providerFailures.WithLabelValues(provider, dataset).Inc()
}

// RecordCacheRefresh records a dataset refresh attempt outcome
// ("success"/"failure").
func (r *Recorder) RecordCacheRefresh(dataset, outcome string) {
	r.cacheRefreshes.WithLabelValues(dataset, outcome).Inc()
}

// RecordRateLimitDenied records a denial by the named limiter.
func (r *Recorder) RecordRateLimitDenied(limiter string) {
	r.rateLimitDenied.WithLabelValues(limiter).Inc()
}

// RecordDelegateCall records a delegate call outcome
// ("success"/"failure"/"skipped").
func (r *Recorder) RecordDelegateCall(outcome string) {
	r.delegateCalls.WithLabelValues(outcome).Inc()
}

// RecordDatasetAge records the age of a cached dataset in seconds.
func (r *Recorder) RecordDatasetAge(dataset string, seconds float64) {
	r.datasetAge.WithLabelValues(dataset).Set(seconds)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
