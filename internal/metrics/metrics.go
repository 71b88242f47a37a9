// Package metrics provides Prometheus instrumentation for the daybook.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts recorded trades, partitioned by result.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_trades_total",
		Help: "Total number of trades recorded",
	}, []string{"result"})

	// TradeRejections counts outcomes dropped for a non-positive stake.
	TradeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daybook_trade_rejections_total",
		Help: "Trade outcomes rejected for an invalid stake",
	})

	// DaysSaved counts day summaries written, partitioned by whether the
	// session advanced to the next day.
	DaysSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_days_saved_total",
		Help: "Day summaries saved",
	}, []string{"advance"})

	// DaysDeleted counts explicit day deletions.
	DaysDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daybook_days_deleted_total",
		Help: "Day summaries deleted",
	})

	// RecalcRewritten observes how many later days a forward recalculation touched.
	RecalcRewritten = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "daybook_recalc_rewritten_days",
		Help:    "Days re-chained by one forward recalculation",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	})

	// SyncWrites counts remote snapshot writes by outcome (ok, error).
	SyncWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_sync_writes_total",
		Help: "Remote summary snapshot writes",
	}, []string{"outcome"})

	// SyncCoalesced counts scheduled writes superseded before they fired.
	SyncCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daybook_sync_coalesced_total",
		Help: "Debounced writes dropped in favour of a newer snapshot",
	})

	// SyncLatency tracks remote write duration.
	SyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "daybook_sync_write_seconds",
		Help:    "Remote snapshot write latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daybook_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daybook_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality
		// (dates and IDs appear in paths).
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
