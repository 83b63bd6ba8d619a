package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP-level Prometheus metrics shared by all routes.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_http_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
	}
}

// ObserveRequest records one request. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// IncrementRateLimited counts a rejected request. Safe on a nil receiver.
func (m *Metrics) IncrementRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
