// Package metrics provides Prometheus instrumentation for the backtest
// service.
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
	// BacktestsTotal counts completed backtest runs, partitioned by mode
	// (single, bull_markets, panorama).
	BacktestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_backtests_total",
		Help: "Total number of completed backtest runs",
	}, []string{"mode"})

	// BacktestDuration tracks how long a single engine run takes.
	BacktestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridbt_backtest_duration_seconds",
		Help:    "Backtest engine run duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SimulatedTradesTotal counts trades the engine simulated, by side.
	SimulatedTradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_simulated_trades_total",
		Help: "Total number of simulated grid trades",
	}, []string{"side"})

	// ProviderRequests counts upstream quote fetches by outcome
	// (ok, not_found, no_data, error).
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_provider_requests_total",
		Help: "Total upstream price fetches by outcome",
	}, []string{"outcome"})

	// PriceCacheHits counts series served from the price cache.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridbt_price_cache_hits_total",
		Help: "Series requests served from the cache",
	})

	// PriceCacheMisses counts series that had to be fetched upstream.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridbt_price_cache_misses_total",
		Help: "Series requests that went to the provider",
	})

	// ActiveRuns tracks backtest runs currently holding a limiter slot.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridbt_active_runs",
		Help: "Number of backtest runs executing right now",
	})

	// RunLimitRejections counts requests rejected by the run limiter.
	RunLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridbt_run_limit_rejections_total",
		Help: "Backtest requests rejected because all run slots were taken",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridbt_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbt_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridbt_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
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

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
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
