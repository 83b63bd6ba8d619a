package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kycdesk/internal/admin/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/admin-mocks.go -package=mocks Service

type Service interface {
	GenerateToken(ctx context.Context, name, email, password string) (string, error)
	CreateAdmin(ctx context.Context, name, email, password string) (*models.Admin, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public admin login route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generateToken", h.HandleGenerateToken)
}

// RegisterOps mounts account management behind the ops token.
func (h *Handler) RegisterOps(r chi.Router) {
	r.Post("/admins", h.HandleCreateAdmin)
}

type CredentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *CredentialsRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" || r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Name, Email and password are required")
	}
	return nil
}

type TokenResponse struct {
	Token string `json:"token"`
}

type AdminResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CredentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, err := h.service.GenerateToken(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "admin token request rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Token Generated Successfully", TokenResponse{Token: token})
}

func (h *Handler) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CredentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	admin, err := h.service.CreateAdmin(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save admin",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "Admin saved", AdminResponse{
		ID:    admin.ID.String(),
		Name:  admin.Name,
		Email: admin.Email,
	})
}
