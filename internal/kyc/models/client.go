package models

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "kycdesk/pkg/domain-errors"
)

// ArtifactRef is where one uploaded file ended up.
type ArtifactRef struct {
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	FolderID   string    `json:"folderId"`
	Link       string    `json:"link"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ClientRecord accumulates one applicant's data and progress. Exactly one per VerificationCode.
type ClientRecord struct {
	ID          uuid.UUID
	CodeID      uuid.UUID
	ClientName  string
	DateOfBirth string
	PhoneNo     string
	NIN         string
	FolderLink  string
	Artifacts   map[string]ArtifactRef

	AuthenticatedAt      *time.Time
	PersonalInfoSavedAt  *time.Time
	IDUploadedAt         *time.Time
	AddressUploadedAt    *time.Time
	BiometricsUploadedAt *time.Time
	SubmittedAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClientRecord builds the stub created alongside a verification code.
func NewClientRecord(id, codeID uuid.UUID, clientName, folderLink string, now time.Time) (*ClientRecord, error) {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Client Name is missing")
	}
	if codeID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "code reference required")
	}
	return &ClientRecord{
		ID:         id,
		CodeID:     codeID,
		ClientName: clientName,
		FolderLink: strings.TrimSpace(folderLink),
		Artifacts:  map[string]ArtifactRef{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Clone returns a deep copy so in-memory stores never share mutable state with callers.
func (r *ClientRecord) Clone() *ClientRecord {
	cp := *r
	cp.Artifacts = maps.Clone(r.Artifacts)
	if cp.Artifacts == nil {
		cp.Artifacts = map[string]ArtifactRef{}
	}
	for _, p := range []**time.Time{
		&cp.AuthenticatedAt, &cp.PersonalInfoSavedAt, &cp.IDUploadedAt,
		&cp.AddressUploadedAt, &cp.BiometricsUploadedAt, &cp.SubmittedAt,
	} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	return &cp
}

// PersonalInfo is the payload of the save-personal-info step.
type PersonalInfo struct {
	DateOfBirth string
	PhoneNo     string
	NIN         string
}
