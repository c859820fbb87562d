// Package metrics provides the Prometheus registry and exposition handler for
// the Snowball gateway. All metrics are defined in their respective packages
// (credential, ratelimit, gateway, cache, server) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics exposition handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Credential Pool Metrics (pkg/credential):
//   - snowball_credentials_total (Gauge): Unique credentials in the pool
//   - snowball_credential_failures_total (Counter): Failures reported against credentials
//   - snowball_credential_cooldowns_total (Counter): Credentials put into cooldown
//   - snowball_credential_forced_total (Counter): Selections made while every credential was cooling down
//
// Limiter Metrics (pkg/ratelimit):
//   - snowball_limiter_interval_seconds (Gauge): Current spacing between upstream calls
//   - snowball_limiter_wait_seconds (Histogram): Time callers spent waiting for admission
//   - snowball_limiter_backoffs_total (Counter): Interval increases after failures
//   - snowball_limiter_recoveries_total (Counter): Resets to the base interval after idle periods
//
// Gateway Metrics (pkg/gateway):
//   - snowball_requests_total{operation, status} (Counter): Attempts by outcome (success, failure, cancelled, cache_hit)
//   - snowball_request_duration_seconds{operation} (Histogram): Invocation duration including pacing and retry
//   - snowball_retries_total{operation} (Counter): Retries after a failed first attempt
//   - snowball_errors_total{class} (Counter): Errors by class (transient, terminal, auth_expired)
//
// Cache Metrics (pkg/cache):
//   - snowball_cache_hits_total{operation} (Counter): Payloads served from Redis
//   - snowball_cache_misses_total{operation} (Counter): Lookups without a fresh entry
//   - snowball_cache_written_bytes_total{operation} (Counter): Payload bytes stored
//   - snowball_cache_errors_total{action} (Counter): Redis failures by action
//
// HTTP Server Metrics (internal/server):
//   - snowball_http_requests_total{route, code} (Counter): Inbound requests by route and status
//   - snowball_http_rejected_total (Counter): Inbound requests refused by the server rate limit
//
// Example Prometheus Queries:
//
//   # Retry Rate
//   sum(rate(snowball_retries_total[5m])) / sum(rate(snowball_requests_total[5m]))
//
//   # Expired Credentials
//   increase(snowball_errors_total{class="auth_expired"}[1h]) > 0
//
//   # Limiter Backed Off
//   snowball_limiter_interval_seconds > 1.5
//
//   # P95 Invocation Latency
//   histogram_quantile(0.95, rate(snowball_request_duration_seconds_bucket[5m]))
//
//   # Cache Hit Rate
//   sum(rate(snowball_cache_hits_total[5m])) /
//   (sum(rate(snowball_cache_hits_total[5m])) + sum(rate(snowball_cache_misses_total[5m])))
