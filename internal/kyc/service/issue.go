package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

type IssueRequest struct {
	CreatedBy  string
	ClientName string
	Flags      models.DocumentFlags
	FolderLink string
}

type IssueResult struct {
	CodeID     uuid.UUID
	Code       string
	ExpiresAt  time.Time
	FolderLink string
}

// Issue mints a verification code and the client record stub it unlocks.
// A drawn value already held by a valid code is redrawn.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Client Name is missing")
	}
	folderLink := strings.TrimSpace(req.FolderLink)
	if folderLink == "" && s.folders != nil {
		link, err := s.folders.CreateClientFolder(ctx, name)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to provision client folder",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			if _, ok := dErrors.As(err); ok {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to create client folder")
		}
		folderLink = link
	}

	now := requestcontext.Now(ctx)
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		value, err := models.GenerateCode()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
		}
		code, err := models.NewVerificationCode(uuid.New(), value, req.CreatedBy, req.Flags, now, s.codeTTL)
		if err != nil {
			return nil, err
		}
		rec, err := models.NewClientRecord(uuid.New(), code.ID, name, folderLink, now)
		if err != nil {
			return nil, err
		}

		err = s.tx.RunInTx(WithShardKey(ctx, value), func(ctx context.Context) error {
			if err := s.codes.Create(ctx, code); err != nil {
				return err
			}
			return s.clients.Create(ctx, rec)
		})
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementIssueRetry()
			s.logger.DebugContext(ctx, "verification code collided, redrawing",
				"attempt", attempt,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		if err != nil {
			if _, ok := dErrors.As(err); ok {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store verification code")
		}

		s.metrics.IncrementIssued()
		s.logger.InfoContext(ctx, "verification code issued",
			"otp_id", code.ID.String(),
			"created_by", req.CreatedBy,
			"expires_at", code.ExpiresAt,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &IssueResult{
			CodeID:     code.ID,
			Code:       code.Code,
			ExpiresAt:  code.ExpiresAt,
			FolderLink: folderLink,
		}, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "could not allocate a unique verification code")
}
