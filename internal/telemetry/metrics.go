// Package telemetry provides application-level observability for the library
// registry: structured logging setup and Prometheus metrics.
//
// All metrics are registered against the default Prometheus registry and served
// on the side-channel HTTP listener started by cmd/server (default port 9090,
// path /metrics). The scrape endpoint deliberately bypasses the Gin router so
// it is unaffected by rate limiting and the user-agent denylist.
//
// HTTP metrics use the Gin route template (c.FullPath(), e.g.
// /api/v1/admin/libraries/:id) rather than the raw URL to keep label
// cardinality bounded; CNPJs and machine names must never become label values.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts processed HTTP requests by method, route
	// template, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// LookupRequestsTotal counts public version lookups by system and cache
	// outcome ("hit" / "miss").
	LookupRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_requests_total",
			Help: "Total number of public version lookups, by system and cache outcome.",
		},
		[]string{"system", "cache"},
	)

	// VersionResolutionsTotal counts resolver outcomes by winning tier:
	// "machine", "tenant", "default", or "none" when no record matched.
	VersionResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_resolutions_total",
			Help: "Total number of version resolutions, by winning scope tier.",
		},
		[]string{"tier"},
	)

	// CacheFlushesTotal counts full cache flushes triggered by admin mutations.
	CacheFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_flushes_total",
			Help: "Total number of full lookup-cache flushes triggered by admin writes.",
		},
	)

	// DBConnectionsOpen reports the current number of open database connections.
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Current number of open database connections.",
		},
	)
)

// StartDBPoolMetrics polls db.Stats() every interval and exports the open
// connection count. It returns a stop function; the poller also exits when the
// database handle is closed and Stats starts returning zeros.
func StartDBPoolMetrics(db *sql.DB, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				DBConnectionsOpen.Set(float64(db.Stats().OpenConnections))
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		slog.Debug("db pool metrics poller stopped")
	}
}
