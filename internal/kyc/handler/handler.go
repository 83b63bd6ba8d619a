package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycdesk/internal/kyc/models"
	kycservice "kycdesk/internal/kyc/service"
	"kycdesk/pkg/platform/httputil"
	authmw "kycdesk/pkg/platform/middleware/auth"
	"kycdesk/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/kyc-mocks.go -package=mocks Service

// SessionCookie carries the client credential between requests.
const SessionCookie = "token"

// Service defines the verification journey operations behind the JSON routes.
type Service interface {
	Issue(ctx context.Context, req kycservice.IssueRequest) (*kycservice.IssueResult, error)
	Authenticate(ctx context.Context, value string) (*kycservice.Session, error)
	Reauthenticate(ctx context.Context, caller requestcontext.Caller, value, token string) (*kycservice.Session, error)
	SavePersonalInfo(ctx context.Context, caller requestcontext.Caller, req kycservice.PersonalInfoRequest) (*models.ClientRecord, error)
	Finalize(ctx context.Context, caller requestcontext.Caller, bodyID string) error
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	cookieTTL    time.Duration
	cookieSecure bool
}

type Option func(*Handler)

// WithCookie sets the session cookie lifetime and Secure flag.
func WithCookie(ttl time.Duration, secure bool) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.cookieTTL = ttl
		}
		h.cookieSecure = secure
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		logger:    logger,
		cookieTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterAdmin mounts routes that require an admin credential.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/generateOTP", h.HandleGenerateOTP)
}

// RegisterClient mounts routes that require a client session. The
// reauthentication route is mounted separately because it is gated differently.
func (h *Handler) RegisterClient(r chi.Router) {
	r.Post("/save-personal-info", h.HandleSavePersonalInfo)
	r.Post("/thankyou", h.HandleThankYou)
}

func (h *Handler) HandleGenerateOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Principal(ctx)

	req, ok := httputil.DecodeAndPrepare[GenerateOTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	createdBy := caller.Email
	if createdBy == "" {
		createdBy = caller.Subject
	}
	res, err := h.service.Issue(ctx, kycservice.IssueRequest{
		CreatedBy:  createdBy,
		ClientName: req.ClientName,
		Flags:      req.Flags(),
		FolderLink: req.FolderLink,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue verification code",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification code issued",
		"otp_id", res.CodeID.String(),
		"issued_by", createdBy,
		"request_id", requestID,
	)
	httputil.WriteSuccess(w, http.StatusOK, "Success", toIssueResponse(res))
}

func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AuthenticateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Authenticate(ctx, req.OTP)
	if err != nil {
		h.logger.WarnContext(ctx, "verification code rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	httputil.WriteSuccess(w, http.StatusOK, "Authentication Successful", toSessionResponse(session))
}

// HandleReauthenticate re-validates a code for a caller whose session cookie
// the gate already accepted.
func (h *Handler) HandleReauthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReauthenticateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token := authmw.TokenFrom(r, authmw.FromCookie(SessionCookie))
	session, err := h.service.Reauthenticate(ctx, requestcontext.Principal(ctx), req.OTP, token)
	if err != nil {
		h.logger.WarnContext(ctx, "reauthentication rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Authentication Successful", toSessionResponse(session))
}

func (h *Handler) HandleSavePersonalInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PersonalInfoRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.SavePersonalInfo(ctx, requestcontext.Principal(ctx), kycservice.PersonalInfoRequest{
		CodeID:      req.OTPID,
		DateOfBirth: req.DOB,
		PhoneNo:     req.PhoneNo,
		NIN:         req.NIN,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to save personal info",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Personal information saved", toPersonalInfoResponse(rec))
}

func (h *Handler) HandleThankYou(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ThankYouRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Finalize(ctx, requestcontext.Principal(ctx), req.ID); err != nil {
		h.logger.ErrorContext(ctx, "failed to finalize verification",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.clearSessionCookie(w)
	httputil.WriteSuccess(w, http.StatusOK, "Verification submitted", nil)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
