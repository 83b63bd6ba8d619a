package handler

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycdesk/internal/kyc/models"
	kycservice "kycdesk/internal/kyc/service"
	"kycdesk/internal/upload"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/httputil"
	"kycdesk/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/upload-mocks.go -package=mocks

// Service is the slice of the verification journey the upload routes need.
type Service interface {
	BeginStep(ctx context.Context, caller requestcontext.Caller, step models.Step) (*kycservice.UploadTarget, error)
	CompleteStep(ctx context.Context, caller requestcontext.Caller, step models.Step, refs []models.ArtifactRef) error
}

// Pipeline stages and transfers one multipart upload.
type Pipeline interface {
	Stage(ctx context.Context, profile upload.Profile, mr *multipart.Reader) (*upload.Batch, error)
	Transfer(ctx context.Context, batch *upload.Batch, dest upload.Destination) (*upload.Result, error)
	Cleanup(ctx context.Context, batch *upload.Batch)
}

type Handler struct {
	service  Service
	pipeline Pipeline
	logger   *slog.Logger
}

func New(service Service, pipeline Pipeline, logger *slog.Logger) *Handler {
	return &Handler{service: service, pipeline: pipeline, logger: logger}
}

// Register mounts the upload routes. The caller wraps r with the client
// session gate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/upload-id", h.HandleUploadID)
	r.Post("/upload-address", h.HandleUploadAddress)
	r.Post("/upload-verification", h.HandleUploadVerification)
}

func (h *Handler) HandleUploadID(w http.ResponseWriter, r *http.Request) {
	res, ok := h.process(w, r, upload.IDProfile)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "ID images uploaded successfully", map[string]string{
		"client":     res.Client,
		"frontImage": res.Links["frontImage"],
		"backImage":  res.Links["backImage"],
	})
}

func (h *Handler) HandleUploadAddress(w http.ResponseWriter, r *http.Request) {
	res, ok := h.process(w, r, upload.AddressProfile)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Address proof uploaded successfully", map[string]string{
		"client":   res.Client,
		"fileLink": res.Links["addressProof"],
	})
}

func (h *Handler) HandleUploadVerification(w http.ResponseWriter, r *http.Request) {
	res, ok := h.process(w, r, upload.VerificationProfile)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verification files uploaded successfully", map[string]any{
		"client":    res.Client,
		"links":     res.Links,
		"timestamp": res.UploadedAt.UTC().Format(time.RFC3339),
	})
}

// process runs guard, staging, transfer and record update for one profile.
// It writes the error response itself and reports whether to continue.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, profile upload.Profile) (*upload.Result, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Principal(ctx)

	target, err := h.service.BeginStep(ctx, caller, profile.Step)
	if err != nil {
		h.logger.WarnContext(ctx, "upload rejected by workflow gate",
			"profile", profile.Name,
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxRequestSize())
	mr, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Expected a multipart/form-data body"))
		return nil, false
	}

	batch, err := h.pipeline.Stage(ctx, profile, mr)
	if err != nil {
		h.logger.WarnContext(ctx, "upload batch rejected",
			"profile", profile.Name,
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return nil, false
	}

	dest := upload.Destination{
		FolderLink: firstNonEmpty(batch.Form["folderLink"], target.Record.FolderLink),
		Client:     firstNonEmpty(batch.Form["client"], target.Record.ClientName),
	}
	res, err := h.pipeline.Transfer(ctx, batch, dest)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}

	if err := h.service.CompleteStep(ctx, caller, profile.Step, res.Artifacts); err != nil {
		h.logger.ErrorContext(ctx, "files transferred but not recorded",
			"profile", profile.Name,
			"links", res.Links,
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return nil, false
	}
	return res, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
