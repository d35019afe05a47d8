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
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Submission operation counter
	SubmissionOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_submission_operations_total",
			Help: "Total number of submission operations",
		},
		[]string{"operation"}, // operation can be "create", "list", "view", "reply", "respond", "delete"
	)

	// Client (tenant) operation counter
	ClientOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_client_operations_total",
			Help: "Total number of client operations",
		},
		[]string{"operation"},
	)

	// Billing operation counter
	BillingOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_billing_operations_total",
			Help: "Total number of billing operations",
		},
		[]string{"operation"}, // operation can be "checkout", "portal", "status"
	)

	// Stripe webhook event counter
	WebhookEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_webhook_events_total",
			Help: "Total number of payment provider webhook events received",
		},
		[]string{"type"},
	)

	// Outbound reply email counter
	EmailSendCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_email_sends_total",
			Help: "Total number of outbound reply emails by result",
		},
		[]string{"result"}, // result can be "sent", "failed"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_token", "access_denied" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inbox_info",
			Help: "Information about the inbox service",
		},
		[]string{"version"},
	)

	// Clients with an active subscription
	ActiveSubscriptionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_active_subscriptions",
			Help: "Number of clients with an active subscription",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(SubmissionOperationCounter)
	prometheus.MustRegister(ClientOperationCounter)
	prometheus.MustRegister(BillingOperationCounter)
	prometheus.MustRegister(WebhookEventCounter)
	prometheus.MustRegister(EmailSendCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(ActiveSubscriptionsGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordSubmissionOperation records a submission operation
func RecordSubmissionOperation(operation string) {
	SubmissionOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordClientOperation records a client operation
func RecordClientOperation(operation string) {
	ClientOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordBillingOperation records a billing operation
func RecordBillingOperation(operation string) {
	BillingOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordWebhookEvent records a received webhook event by type
func RecordWebhookEvent(eventType string) {
	WebhookEventCounter.With(prometheus.Labels{"type": eventType}).Inc()
}

// RecordEmailSend records an outbound email send result
func RecordEmailSend(result string) {
	EmailSendCounter.With(prometheus.Labels{"result": result}).Inc()
}
