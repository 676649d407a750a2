package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Directory (Graph) metrics
	DirectoryRequestsTotal   *prometheus.CounterVec
	DirectoryRequestDuration *prometheus.HistogramVec

	// Usage feed metrics
	FeedPagesTotal       *prometheus.CounterVec
	FeedRowsTotal        prometheus.Counter
	FeedTruncationsTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Redis metrics
	RedisCommandsTotal   *prometheus.CounterVec
	RedisCommandDuration *prometheus.HistogramVec

	// Analytics metrics
	AnalyticsQueryDuration *prometheus.HistogramVec
	SnapshotPublishTotal   *prometheus.CounterVec

	// Business metrics
	LicensedUsers         prometheus.Gauge
	LicenseSeatsAvailable prometheus.Gauge
	ActiveUsers           *prometheus.GaugeVec
	TotalActions          *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Directory metrics
		DirectoryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_directory_requests_total",
				Help: "Total number of directory API requests",
			},
			[]string{"operation", "status"},
		),
		DirectoryRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_directory_request_duration_seconds",
				Help:    "Directory API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Usage feed metrics
		FeedPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_feed_pages_total",
				Help: "Total number of usage feed pages requested",
			},
			[]string{"status"},
		),
		FeedRowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seatlens_feed_rows_total",
				Help: "Total number of usage rows read from the feed",
			},
		),
		FeedTruncationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seatlens_feed_truncations_total",
				Help: "Total number of feed walks cut short by a failed page",
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Redis metrics
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),
		RedisCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_redis_command_duration_seconds",
				Help:    "Redis command duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),

		// Analytics metrics
		AnalyticsQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seatlens_analytics_query_duration_seconds",
				Help:    "Analytics query duration in seconds, upstream fetch included",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		SnapshotPublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seatlens_snapshot_publish_total",
				Help: "Total number of summary snapshot publications",
			},
			[]string{"days", "status"},
		),

		// Business metrics
		LicensedUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seatlens_licensed_users",
				Help: "Number of assigned license seats",
			},
		),
		LicenseSeatsAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seatlens_license_seats_available",
				Help: "Number of unassigned license seats",
			},
		),
		ActiveUsers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seatlens_active_users",
				Help: "Licensed users active within the activity window",
			},
			[]string{"days"},
		),
		TotalActions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seatlens_total_actions",
				Help: "Estimated Copilot actions within the activity window",
			},
			[]string{"days"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.DirectoryRequestsTotal,
		m.DirectoryRequestDuration,
		m.FeedPagesTotal,
		m.FeedRowsTotal,
		m.FeedTruncationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RedisCommandsTotal,
		m.RedisCommandDuration,
		m.AnalyticsQueryDuration,
		m.SnapshotPublishTotal,
		m.LicensedUsers,
		m.LicenseSeatsAvailable,
		m.ActiveUsers,
		m.TotalActions,
	)

	return m
}

// ObserveDirectoryRequest records one directory API call
func (m *Metrics) ObserveDirectoryRequest(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DirectoryRequestsTotal.WithLabelValues(operation, status).Inc()
	m.DirectoryRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched route template so path parameters do not
// create new series. Unmatched requests share one label.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// It must run inside the router so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := routeLabel(r)

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
