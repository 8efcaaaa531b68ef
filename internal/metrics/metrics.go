// Package metrics provides Prometheus instrumentation for the staking engine.
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
	// OperationsTotal counts completed lifecycle operations by kind.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_operations_total",
		Help: "Total number of completed staking lifecycle operations",
	}, []string{"op"})

	// OperationRejections counts operations rejected by a precondition,
	// partitioned by operation and rejection reason.
	OperationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_operation_rejections_total",
		Help: "Staking operations rejected by a precondition check",
	}, []string{"op", "reason"})

	// OperationLatency tracks lifecycle operation latency by kind.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staking_operation_latency_seconds",
		Help:    "Staking operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// TotalStaked mirrors the pool's informational total-staked aggregate.
	TotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_total_staked",
		Help: "Sum of all open stake principals in base units",
	})

	// CustodyBalance is the custody account balance at the last reconcile.
	CustodyBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_custody_balance",
		Help: "Custody account balance in base units",
	})

	// OutstandingLiability is principal plus accrued-but-unclaimed rewards
	// across all open stakes at the last reconcile.
	OutstandingLiability = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_outstanding_liability",
		Help: "Principal plus accrued unclaimed rewards in base units",
	})

	// SolvencyShortfall is max(0, liability - custody balance).
	SolvencyShortfall = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_solvency_shortfall",
		Help: "Amount by which obligations exceed the custody balance",
	})

	// WebSocketClients tracks connected event-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staking_http_request_duration_seconds",
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
