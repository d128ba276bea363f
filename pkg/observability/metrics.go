package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Search metrics
	SearchesTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsCreatedTotal  *prometheus.CounterVec
	NotificationMutationsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Email metrics
	EmailsSentTotal    *prometheus.CounterVec
	EmailsSkippedTotal *prometheus.CounterVec
	EmailErrorsTotal   prometheus.Counter

	// Webhook metrics
	WebhookDeliveriesTotal *prometheus.CounterVec
	WebhookRetriesTotal    prometheus.Counter

	// Follow-up metrics
	FollowUpsSentTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pinkbeam_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pinkbeam_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Search metrics
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_searches_total",
				Help: "Total number of search queries by entity type",
			},
			[]string{"type"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pinkbeam_search_duration_seconds",
				Help:    "Search query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),

		// Notification metrics
		NotificationsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_notifications_created_total",
				Help: "Total number of notifications created",
			},
			[]string{"type"},
		),
		NotificationMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_notification_mutations_total",
				Help: "Total number of notification state changes",
			},
			[]string{"operation"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Email metrics
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_emails_sent_total",
				Help: "Total number of emails sent by template",
			},
			[]string{"template"},
		),
		EmailsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_emails_skipped_total",
				Help: "Emails skipped because no template applies",
			},
			[]string{"template"},
		),
		EmailErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pinkbeam_email_errors_total",
				Help: "Total number of email provider errors",
			},
		),

		// Webhook metrics
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_webhook_deliveries_total",
				Help: "Total number of webhook delivery attempts by outcome",
			},
			[]string{"status"},
		),
		WebhookRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pinkbeam_webhook_retries_total",
				Help: "Total number of webhook delivery retries",
			},
		),

		// Follow-up metrics
		FollowUpsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinkbeam_followups_sent_total",
				Help: "Total number of follow-up emails sent by stage",
			},
			[]string{"stage"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinkbeam_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinkbeam_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pinkbeam_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.SearchesTotal,
		m.SearchDuration,
		m.NotificationsCreatedTotal,
		m.NotificationMutationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EmailsSentTotal,
		m.EmailsSkippedTotal,
		m.EmailErrorsTotal,
		m.WebhookDeliveriesTotal,
		m.WebhookRetriesTotal,
		m.FollowUpsSentTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.RedisConnectionsActive,
	)

	return m
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the Prometheus scrape handler for the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// CollectDBStats copies database pool statistics into the connection gauges.
// Intended to run on a ticker from the main binary.
func (m *Metrics) CollectDBStats(active, idle int) {
	m.DBConnectionsActive.Set(float64(active))
	m.DBConnectionsIdle.Set(float64(idle))
}
