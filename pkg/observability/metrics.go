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

	// Auth metrics
	AuthExchangesTotal         *prometheus.CounterVec
	SessionRotationsTotal      prometheus.Counter
	SessionValidationsTotal    *prometheus.CounterVec

	// Rate limiting
	RateLimitDecisionsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookVerificationsTotal   *prometheus.CounterVec
	NotificationDeliveriesTotal *prometheus.CounterVec

	// Collaboration metrics
	CollaborationOpsTotal    *prometheus.CounterVec
	InvitationsExpiredTotal  prometheus.Counter
	ActivityRecordsTotal     *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wishcraft_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_auth_exchanges_total",
				Help: "OAuth exchange completions by outcome",
			},
			[]string{"outcome"},
		),
		SessionRotationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wishcraft_session_rotations_total",
				Help: "Sessions rotated on privilege-relevant events",
			},
		),
		SessionValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_session_validations_total",
				Help: "Session payload validations by outcome",
			},
			[]string{"outcome"},
		),

		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_ratelimit_decisions_total",
				Help: "Rate limiter decisions by scope and outcome",
			},
			[]string{"scope", "outcome"},
		),

		WebhookVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_webhook_verifications_total",
				Help: "Inbound webhook signature verifications by outcome",
			},
			[]string{"outcome"},
		),
		NotificationDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_notification_deliveries_total",
				Help: "Outbound notification deliveries by status",
			},
			[]string{"status"},
		),

		CollaborationOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_collaboration_operations_total",
				Help: "Collaboration manager operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
		InvitationsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wishcraft_invitations_expired_total",
				Help: "Pending invitations transitioned to expired by cleanup",
			},
		),
		ActivityRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wishcraft_activity_records_total",
				Help: "Activity audit records written by action",
			},
			[]string{"action"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wishcraft_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wishcraft_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wishcraft_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthExchangesTotal,
		m.SessionRotationsTotal,
		m.SessionValidationsTotal,
		m.RateLimitDecisionsTotal,
		m.WebhookVerificationsTotal,
		m.NotificationDeliveriesTotal,
		m.CollaborationOpsTotal,
		m.InvitationsExpiredTotal,
		m.ActivityRecordsTotal,
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

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
