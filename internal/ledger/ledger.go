// Package ledger mirrors client status into an external spreadsheet. The
// mirror is best-effort: the record store stays authoritative and callers
// only log what the ledger returns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycdesk/internal/kyc/models"
	"kycdesk/pkg/platform/circuit"
	"kycdesk/pkg/platform/sentinel"
)

// StatusSubmitted is written to the status column at finalization.
const StatusSubmitted = "Submitted"

// Backend writes to one ledger implementation.
type Backend interface {
	MarkSubmitted(ctx context.Context, codeID string) error
	RecordPersonalInfo(ctx context.Context, codeID string, info models.PersonalInfo) error
}

// ErrCircuitOpen is returned without calling the backend while it is failing.
var ErrCircuitOpen = fmt.Errorf("ledger circuit open: %w", sentinel.ErrUnavailable)

const defaultTimeout = 10 * time.Second

// Mirror guards a Backend with a per-call timeout and a circuit breaker.
type Mirror struct {
	backend Backend
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Mirror)

func WithTimeout(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Mirror) {
		if b != nil {
			m.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

func NewMirror(backend Backend, opts ...Option) *Mirror {
	m := &Mirror{
		backend: backend,
		breaker: circuit.New("ledger"),
		timeout: defaultTimeout,
		logger:  slog.Default(),
		tracer:  otel.Tracer("kycdesk/ledger"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) MarkSubmitted(ctx context.Context, codeID string) error {
	return m.call(ctx, "ledger.mark_submitted", codeID, func(ctx context.Context) error {
		return m.backend.MarkSubmitted(ctx, codeID)
	})
}

func (m *Mirror) RecordPersonalInfo(ctx context.Context, codeID string, info models.PersonalInfo) error {
	return m.call(ctx, "ledger.record_personal_info", codeID, func(ctx context.Context) error {
		return m.backend.RecordPersonalInfo(ctx, codeID, info)
	})
}

func (m *Mirror) call(ctx context.Context, op, codeID string, fn func(context.Context) error) error {
	if !m.breaker.Allow() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx, span := m.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("kyc.otp_id", codeID)))
	defer span.End()

	err := fn(ctx)
	// A missing row means the ledger answered; it does not count against the breaker.
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "ledger circuit closed", "breaker", m.breaker.Name())
		}
		if err != nil {
			span.SetStatus(codes.Error, "row not found")
		}
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if _, change := m.breaker.RecordFailure(); change.Opened {
		m.logger.WarnContext(ctx, "ledger circuit opened", "breaker", m.breaker.Name(), "error", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", op, sentinel.ErrUnavailable)
	}
	return err
}
