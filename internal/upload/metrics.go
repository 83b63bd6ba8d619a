package upload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the upload pipeline.
type Metrics struct {
	TransferDuration *prometheus.HistogramVec
	Rejected         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		TransferDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycdesk_upload_transfer_duration_seconds",
			Help:    "Duration of batch transfers to remote storage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"profile", "outcome"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_upload_rejected_total",
			Help: "Upload batches rejected before transfer",
		}, []string{"profile"}),
	}
}

func (m *Metrics) ObserveTransfer(profile, outcome string, d time.Duration) {
	if m != nil {
		m.TransferDuration.WithLabelValues(profile, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRejected(profile string) {
	if m != nil {
		m.Rejected.WithLabelValues(profile).Inc()
	}
}
