package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

// Session is what a client sees after presenting a valid code: which steps
// the code unlocks, where uploads go, and the credential for later calls.
type Session struct {
	CodeID     uuid.UUID
	ClientName string
	Flags      models.DocumentFlags
	FolderLink string
	Step       models.Step
	NextStep   models.Step
	Token      string
}

// Authenticate exchanges a code value for a session credential. Unknown codes
// fail before used ones, and used ones before expired ones.
func (s *Service) Authenticate(ctx context.Context, value string) (*Session, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Verification Code Required")
	}

	code, rec, err := s.checkCode(ctx, value)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if !rec.Completed(models.StepAuthenticated) {
		if err := s.clients.MarkStep(ctx, code.ID, models.StepAuthenticated, now); err != nil {
			return nil, translateRecordErr(err)
		}
		rec.MarkStep(models.StepAuthenticated, now)
		s.metrics.IncrementStep(string(models.StepAuthenticated))
	}

	token, err := s.tokens.GenerateClientToken(code.ID, rec.ClientName, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}

	s.logger.InfoContext(ctx, "client authenticated",
		"otp_id", code.ID.String(),
		"device", deviceLabel(requestcontext.UserAgent(ctx)),
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return newSession(code, rec, token), nil
}

// Reauthenticate re-checks a code for a caller that already holds a session
// credential. The credential must have been issued for that same code.
func (s *Service) Reauthenticate(ctx context.Context, caller requestcontext.Caller, value, token string) (*Session, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Bad Request")
	}

	code, rec, err := s.checkCode(ctx, value)
	if err != nil {
		return nil, err
	}
	if caller.Subject != code.ID.String() {
		s.logger.WarnContext(ctx, "session credential presented for another code",
			"otp_id", code.ID.String(),
			"subject", caller.Subject,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "You are not authorized")
	}
	return newSession(code, rec, token), nil
}

func (s *Service) checkCode(ctx context.Context, value string) (*models.VerificationCode, *models.ClientRecord, error) {
	code, err := s.codes.FindByCode(ctx, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementAuthentication("not_found")
		}
		return nil, nil, translateCodeErr(err)
	}
	if err := code.CheckUsable(requestcontext.Now(ctx)); err != nil {
		s.metrics.IncrementAuthentication(string(dErrors.CodeOf(err)))
		return nil, nil, err
	}
	rec, err := s.clients.FindByCodeID(ctx, code.ID)
	if err != nil {
		return nil, nil, translateRecordErr(err)
	}
	s.metrics.IncrementAuthentication("success")
	return code, rec, nil
}

func newSession(code *models.VerificationCode, rec *models.ClientRecord, token string) *Session {
	return &Session{
		CodeID:     code.ID,
		ClientName: rec.ClientName,
		Flags:      code.Flags,
		FolderLink: rec.FolderLink,
		Step:       rec.CurrentStep(),
		NextStep:   rec.NextStep(code.Flags),
		Token:      token,
	}
}

func deviceLabel(ua string) string {
	if ua == "" {
		return "unknown"
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	label := parsed.OS()
	if browser != "" {
		label = browser + " on " + label
	}
	if parsed.Mobile() {
		label += " (mobile)"
	}
	if strings.TrimSpace(label) == "" {
		return "unknown"
	}
	return label
}
