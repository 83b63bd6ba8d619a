package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification journey.
type Metrics struct {
	CodesIssued       prometheus.Counter
	IssueRetries      prometheus.Counter
	Authentications   *prometheus.CounterVec
	StepsCompleted    *prometheus.CounterVec
	Finalized         prometheus.Counter
	LedgerMirrorFails *prometheus.CounterVec
}

// New creates a new Metrics instance with all kyc module metrics registered.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_codes_issued_total",
			Help: "Verification codes issued",
		}),
		IssueRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_code_issue_retries_total",
			Help: "Code draws retried because the value collided with a valid code",
		}),
		Authentications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_code_authentications_total",
			Help: "Code authentication attempts by outcome",
		}, []string{"outcome"}), // outcome: "success", "not_found", "already_used", "expired"
		StepsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_workflow_steps_completed_total",
			Help: "Workflow steps completed by step",
		}, []string{"step"}),
		Finalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycdesk_submissions_finalized_total",
			Help: "Client journeys finalized",
		}),
		LedgerMirrorFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycdesk_ledger_mirror_failures_total",
			Help: "Best-effort ledger writes that failed",
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.CodesIssued.Inc()
	}
}

func (m *Metrics) IncrementIssueRetry() {
	if m != nil {
		m.IssueRetries.Inc()
	}
}

func (m *Metrics) IncrementAuthentication(outcome string) {
	if m != nil {
		m.Authentications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementStep(step string) {
	if m != nil {
		m.StepsCompleted.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncrementFinalized() {
	if m != nil {
		m.Finalized.Inc()
	}
}

func (m *Metrics) IncrementLedgerFailure(operation string) {
	if m != nil {
		m.LedgerMirrorFails.WithLabelValues(operation).Inc()
	}
}
