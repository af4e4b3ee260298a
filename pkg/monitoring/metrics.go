package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// OTP challenge lifecycle metrics
	otpChallengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_challenges_total",
			Help: "Total number of OTP challenge transitions",
		},
		[]string{"transition", "status"},
	)

	// Visit record metrics
	recordsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medical_records_appended_total",
			Help: "Total number of medical record append attempts",
		},
		[]string{"status"},
	)

	// Emergency lookup metrics
	emergencyLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_lookups_total",
			Help: "Total number of emergency scan lookups",
		},
		[]string{"status"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		otpChallengesTotal,
		recordsAppendedTotal,
		emergencyLookupsTotal,
		authAttemptsTotal,
	)
}

// Handler returns the /metrics endpoint handler
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records per-request metrics
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// RecordOTPTransition counts an OTP state transition outcome
func RecordOTPTransition(transition string, success bool) {
	otpChallengesTotal.WithLabelValues(transition, statusLabel(success)).Inc()
}

// RecordAppend counts a medical record append outcome
func RecordAppend(success bool) {
	recordsAppendedTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordEmergencyLookup counts an emergency scan outcome
func RecordEmergencyLookup(success bool) {
	emergencyLookupsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordAuthAttempt counts an authentication attempt outcome
func RecordAuthAttempt(method string, success bool) {
	authAttemptsTotal.WithLabelValues(method, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
