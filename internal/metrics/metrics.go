// Package metrics holds the Prometheus collectors of the web server and the chi middleware that feeds them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mqtt_monitor_build_info",
			Help: "Build information of the MQTT monitor",
		},
		[]string{"version", "commit"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_monitor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mqtt_monitor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mqtt_monitor_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	TelemetryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mqtt_monitor_telemetry_query_duration_seconds",
			Help:    "Duration of telemetry store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TelemetryQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_monitor_telemetry_query_errors_total",
			Help: "Total number of failed telemetry store queries",
		},
		[]string{"operation"},
	)

	TelemetryPointsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mqtt_monitor_telemetry_points_returned",
			Help:    "Number of points returned per series query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_monitor_exports_total",
			Help: "Total number of CSV export attempts by outcome",
		},
		[]string{"outcome"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_monitor_logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveQuery records the duration and outcome of one telemetry query.
func ObserveQuery(operation string, elapsed time.Duration, err error) {
	TelemetryQueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		TelemetryQueryErrors.WithLabelValues(operation).Inc()
	}
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := strconv.Itoa(code)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
