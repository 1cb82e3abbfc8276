package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// HTTP request counter by route and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	// Authorization failures by reason
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_auth_errors_total",
			Help: "Total number of authentication and authorization failures",
		},
		[]string{"reason"}, // not_authenticated, not_member, insufficient_role, forbidden
	)

	// Tenant data operations
	TenantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_tenant_operations_total",
			Help: "Total number of tenant-scoped data operations",
		},
		[]string{"resource", "operation"},
	)

	// Media proxy terminal states
	MediaProxyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_media_proxy_responses_total",
			Help: "Signed-media proxy responses by outcome",
		},
		[]string{"outcome"}, // not_modified, ok, not_found, forbidden, bad_gateway, gateway_timeout
	)

	// Signed URL cache lookups
	SignedURLCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_signed_url_cache_total",
			Help: "Signed URL cache lookups by result",
		},
		[]string{"result"}, // hit, miss, evicted
	)

	// Report generation
	ReportCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouting_reports_total",
			Help: "Scouting reports generated by format and result",
		},
		[]string{"format", "result"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scouting_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scouting_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // query, insert, update, delete, stats
	)

	// Upstream media fetch duration
	MediaFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scouting_media_fetch_duration_seconds",
			Help:    "Duration of upstream media fetches in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scouting_info",
			Help: "Information about the scouting service",
		},
		[]string{"version"},
	)

	// Signed URL cache size
	SignedURLCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scouting_signed_url_cache_entries",
			Help: "Number of signed URLs currently cached in this process",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(TenantOperationCounter)
	prometheus.MustRegister(MediaProxyCounter)
	prometheus.MustRegister(SignedURLCacheCounter)
	prometheus.MustRegister(ReportCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(MediaFetchDuration)

	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(SignedURLCacheEntries)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations.
// Usage: defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(startTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			labels := prometheus.Labels{
				"route":  c.Path(),
				"method": c.Request().Method,
				"status": status,
			}
			RequestDuration.With(labels).Observe(time.Since(start).Seconds())
			HTTPRequestCounter.With(labels).Inc()

			return err
		}
	}
}

// RecordAuthError records an authorization failure by reason
func RecordAuthError(reason string) {
	AuthErrorCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordTenantOperation records a tenant-scoped data operation
func RecordTenantOperation(resource, operation string) {
	TenantOperationCounter.With(prometheus.Labels{"resource": resource, "operation": operation}).Inc()
}

// RecordMediaOutcome records a media proxy terminal state
func RecordMediaOutcome(outcome string) {
	MediaProxyCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordSignedURLCache records a signed URL cache lookup result
func RecordSignedURLCache(result string) {
	SignedURLCacheCounter.With(prometheus.Labels{"result": result}).Inc()
}

// SetSignedURLCacheEntries updates the cache size gauge
func SetSignedURLCacheEntries(n int) {
	SignedURLCacheEntries.Set(float64(n))
}

// ObserveMediaFetch records an upstream media fetch duration
func ObserveMediaFetch(d time.Duration) {
	MediaFetchDuration.Observe(d.Seconds())
}

// RecordReport records a report generation
func RecordReport(format, result string) {
	ReportCounter.With(prometheus.Labels{"format": format, "result": result}).Inc()
}
