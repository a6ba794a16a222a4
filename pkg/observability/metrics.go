// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring keygate.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LookupBuckets defines histogram buckets for key resolution latency,
// from 100µs for table hits up to 5s for slow backends.
var LookupBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keygate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AuthResolutionsTotal counts API key resolutions by strategy and
	// outcome ("valid" or "invalid").
	AuthResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_auth_resolutions_total",
			Help: "API key resolutions",
		},
		[]string{"strategy", "outcome"},
	)

	// AuthResolutionDuration records how long a key resolution took.
	AuthResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keygate_auth_resolution_duration_seconds",
			Help:    "API key resolution latency",
			Buckets: LookupBuckets,
		},
		[]string{"strategy"},
	)

	// AuthRejectedTotal counts requests answered with 401, by auth mode.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_auth_rejected_total",
			Help: "Requests rejected by authentication",
		},
		[]string{"mode"},
	)

	// KeyStoreErrorsTotal counts backend failures of named lookup methods.
	KeyStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_keystore_errors_total",
			Help: "Key store lookup errors",
		},
		[]string{"backend"},
	)

	// KeyStoreCacheTotal counts lookup cache hits and misses.
	KeyStoreCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_keystore_cache_total",
			Help: "Key store cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthResolutionsTotal,
		AuthResolutionDuration,
		AuthRejectedTotal,
		KeyStoreErrorsTotal,
		KeyStoreCacheTotal,
	)
}
