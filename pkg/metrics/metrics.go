package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, path and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PaymentsInitiated counts payment initiations by provider and mode.
	PaymentsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Total payment initiations",
		},
		[]string{"provider", "mode"},
	)

	// PaymentCallbacks counts gateway callbacks/webhooks by resulting status.
	PaymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Total payment callbacks processed",
		},
		[]string{"status"},
	)

	// PaymentAmount observes final transaction amounts on terminal success.
	PaymentAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_amount",
			Help:    "Final amounts of successful payments",
			Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		},
	)

	// GatewayBreakerState exposes the provider circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	GatewayBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_gateway_breaker_state",
			Help: "Payment gateway circuit breaker state",
		},
	)
)

// Middleware records request counts and durations for gin routes.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
