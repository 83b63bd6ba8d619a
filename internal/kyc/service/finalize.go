package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

// Finalize consumes the caller's verification code and closes the journey.
// The local write is authoritative: the session credential is revoked and the
// ledger updated only after it commits, and failures of either are logged.
func (s *Service) Finalize(ctx context.Context, caller requestcontext.Caller, bodyID string) error {
	codeID, err := subjectCodeID(caller.Subject, strings.TrimSpace(bodyID))
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	err = s.tx.RunInTx(WithShardKey(ctx, codeID.String()), func(ctx context.Context) error {
		code, err := s.codes.FindByIDForUpdate(ctx, codeID)
		if err != nil {
			return translateCodeErr(err)
		}
		rec, err := s.clients.FindByCodeID(ctx, codeID)
		if err != nil {
			return translateRecordErr(err)
		}
		if !code.Valid {
			return dErrors.New(dErrors.CodeAlreadyUsed, models.MsgCodeAlreadyUsed)
		}
		if err := rec.CanEnter(models.StepFinalized, code.Flags); err != nil {
			return err
		}
		if err := s.codes.Invalidate(ctx, codeID, now); err != nil {
			return translateCodeErr(err)
		}
		if err := s.clients.MarkStep(ctx, codeID, models.StepFinalized, now); err != nil {
			return translateRecordErr(err)
		}
		return nil
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return err
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeAlreadyUsed, models.MsgCodeAlreadyUsed)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize submission")
	}

	s.metrics.IncrementFinalized()
	s.logger.InfoContext(ctx, "submission finalized",
		"otp_id", codeID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)

	s.revokeSession(ctx, caller, now)
	s.mirrorSubmitted(ctx, codeID.String())
	return nil
}

func (s *Service) revokeSession(ctx context.Context, caller requestcontext.Caller, now time.Time) {
	if s.revoker == nil || caller.TokenID == "" || caller.ExpiresAt.IsZero() {
		return
	}
	ttl := caller.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := s.revoker.RevokeToken(ctx, caller.TokenID, ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke finalized session",
			"jti", caller.TokenID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) mirrorSubmitted(ctx context.Context, codeID string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.MarkSubmitted(context.WithoutCancel(ctx), codeID); err != nil {
		s.metrics.IncrementLedgerFailure("submitted")
		s.logger.WarnContext(ctx, "ledger mirror of submission failed",
			"otp_id", codeID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
