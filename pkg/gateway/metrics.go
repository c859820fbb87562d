package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error classes for snowball_errors_total.
const (
	ClassTransient   = "transient"
	ClassTerminal    = "terminal"
	ClassAuthExpired = "auth_expired"
)

// Prometheus metrics for gateway invocations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_requests_total",
		Help: "Total upstream attempts by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snowball_request_duration_seconds",
		Help:    "Invocation duration in seconds by operation, including pacing and retry",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_retries_total",
		Help: "Total number of retry attempts by operation",
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snowball_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)
