// Package metrics provides Prometheus instrumentation for predyxd.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuotesTotal counts pricing previews served, partitioned by kind and
	// market type.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predyx_quotes_total",
		Help: "Total number of quotes computed",
	}, []string{"kind", "market_type"})

	// QuoteErrors counts quote requests rejected by the pricing layer.
	QuoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predyx_quote_errors_total",
		Help: "Quote requests rejected by validation or pricing",
	}, []string{"kind"})

	// PricingLatency tracks quote computation latency, including any chain
	// snapshot refresh.
	PricingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predyx_pricing_latency_seconds",
		Help:    "Quote computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// SnapshotRefreshes counts live pool reads against the chain, partitioned
	// by the reason the cache was bypassed.
	SnapshotRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predyx_snapshot_refreshes_total",
		Help: "Pool snapshot reads issued against the chain",
	}, []string{"reason"})

	// ActiveMarkets tracks the number of markets open for trading.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predyx_active_markets",
		Help: "Number of currently active markets",
	})

	// SyncLag tracks how far the indexer head trails the chain head, in blocks.
	SyncLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predyx_sync_lag_blocks",
		Help: "Blocks the indexer head trails the chain head",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predyx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predyx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predyx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// ArchivedQuotes counts quote rows moved to cold storage.
	ArchivedQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predyx_archived_quotes_total",
		Help: "Quote rows archived to object storage",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern when available to keep label cardinality low.
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
