package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycdesk/internal/kyc/models"
	"kycdesk/pkg/platform/sentinel"
)

// InMemory stores client records keyed by their verification code id.
type InMemory struct {
	mu     sync.RWMutex
	byCode map[uuid.UUID]*models.ClientRecord
}

func NewInMemory() *InMemory {
	return &InMemory{byCode: make(map[uuid.UUID]*models.ClientRecord)}
}

func (s *InMemory) Create(_ context.Context, rec *models.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCode[rec.CodeID]; exists {
		return fmt.Errorf("client record for code %s: %w", rec.CodeID, sentinel.ErrConflict)
	}
	s.byCode[rec.CodeID] = rec.Clone()
	return nil
}

func (s *InMemory) FindByCodeID(_ context.Context, codeID uuid.UUID) (*models.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byCode[codeID]
	if !ok {
		return nil, fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *InMemory) MarkStep(_ context.Context, codeID uuid.UUID, step models.Step, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byCode[codeID]
	if !ok {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrNotFound)
	}
	rec.MarkStep(step, at)
	return nil
}

// UpsertPersonalInfo writes personal data, creating the record when the code has none.
func (s *InMemory) UpsertPersonalInfo(_ context.Context, codeID uuid.UUID, clientName string, info models.PersonalInfo, at time.Time) (*models.ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byCode[codeID]
	if !ok {
		rec = &models.ClientRecord{
			ID:         uuid.New(),
			CodeID:     codeID,
			ClientName: clientName,
			Artifacts:  map[string]models.ArtifactRef{},
			CreatedAt:  at,
		}
		s.byCode[codeID] = rec
	}
	rec.DateOfBirth = info.DateOfBirth
	rec.PhoneNo = info.PhoneNo
	rec.NIN = info.NIN
	rec.MarkStep(models.StepPersonalInfoSaved, at)
	return rec.Clone(), nil
}

// AttachArtifacts records uploaded artifacts and completes step in one write.
// A submitted record is frozen and yields ErrAlreadyUsed.
func (s *InMemory) AttachArtifacts(_ context.Context, codeID uuid.UUID, step models.Step, refs []models.ArtifactRef, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byCode[codeID]
	if !ok {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrNotFound)
	}
	if rec.SubmittedAt != nil {
		return fmt.Errorf("client record for code %s: %w", codeID, sentinel.ErrAlreadyUsed)
	}
	for _, ref := range refs {
		rec.Artifacts[ref.Role] = ref
	}
	rec.MarkStep(step, at)
	return nil
}
