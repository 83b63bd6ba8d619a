package service

import (
	"context"
	"strings"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/requestcontext"
)

type PersonalInfoRequest struct {
	CodeID      string
	DateOfBirth string
	PhoneNo     string
	NIN         string
}

// SavePersonalInfo stores the applicant's personal details on their record
// and mirrors them to the ledger when one is configured.
func (s *Service) SavePersonalInfo(ctx context.Context, caller requestcontext.Caller, req PersonalInfoRequest) (*models.ClientRecord, error) {
	info := models.PersonalInfo{
		DateOfBirth: strings.TrimSpace(req.DateOfBirth),
		PhoneNo:     strings.TrimSpace(req.PhoneNo),
		NIN:         strings.TrimSpace(req.NIN),
	}
	if info.DateOfBirth == "" || info.PhoneNo == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Bad Request")
	}
	codeID, err := subjectCodeID(caller.Subject, strings.TrimSpace(req.CodeID))
	if err != nil {
		return nil, err
	}

	code, rec, err := s.loadSession(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if err := rec.CanEnter(models.StepPersonalInfoSaved, code.Flags); err != nil {
		return nil, err
	}

	saved, err := s.clients.UpsertPersonalInfo(ctx, codeID, rec.ClientName, info, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save personal information")
	}
	s.metrics.IncrementStep(string(models.StepPersonalInfoSaved))

	if s.ledger != nil {
		if err := s.ledger.RecordPersonalInfo(ctx, codeID.String(), info); err != nil {
			s.metrics.IncrementLedgerFailure("personal_info")
			s.logger.WarnContext(ctx, "ledger mirror of personal info failed",
				"otp_id", codeID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return saved, nil
}

// UploadTarget is what the upload pipeline needs to know about the caller.
type UploadTarget struct {
	Record *models.ClientRecord
	Flags  models.DocumentFlags
}

// BeginStep checks that the caller's code is usable and every earlier
// required step is complete. It runs before any file is staged.
func (s *Service) BeginStep(ctx context.Context, caller requestcontext.Caller, step models.Step) (*UploadTarget, error) {
	codeID, err := subjectCodeID(caller.Subject, "")
	if err != nil {
		return nil, err
	}
	code, rec, err := s.loadSession(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if err := rec.CanEnter(step, code.Flags); err != nil {
		return nil, err
	}
	return &UploadTarget{Record: rec, Flags: code.Flags}, nil
}

// CompleteStep records the uploaded artifacts and marks step done. The code
// row is locked and re-checked inside the transaction, so whichever of this
// and Finalize commits second sees the other's write.
func (s *Service) CompleteStep(ctx context.Context, caller requestcontext.Caller, step models.Step, refs []models.ArtifactRef) error {
	codeID, err := subjectCodeID(caller.Subject, "")
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	for i := range refs {
		if refs[i].UploadedAt.IsZero() {
			refs[i].UploadedAt = now
		}
	}

	err = s.tx.RunInTx(WithShardKey(ctx, codeID.String()), func(ctx context.Context) error {
		code, rec, err := s.lockSession(ctx, codeID)
		if err != nil {
			return err
		}
		if err := rec.CanEnter(step, code.Flags); err != nil {
			return err
		}
		if err := s.clients.AttachArtifacts(ctx, codeID, step, refs, now); err != nil {
			return translateRecordErr(err)
		}
		return nil
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record uploaded files")
	}
	s.metrics.IncrementStep(string(step))
	s.logger.InfoContext(ctx, "workflow step completed",
		"otp_id", codeID.String(),
		"step", string(step),
		"files", len(refs),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
