package code

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycdesk/internal/kyc/models"
	"kycdesk/pkg/platform/sentinel"
)

// InMemory stores verification codes in process memory. The valid index
// mirrors the partial unique index the postgres store relies on.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.VerificationCode
	valid  map[string]uuid.UUID
	byCode map[string][]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[uuid.UUID]*models.VerificationCode),
		valid:  make(map[string]uuid.UUID),
		byCode: make(map[string][]uuid.UUID),
	}
}

// Create inserts c, failing with ErrConflict if its value is held by a valid code.
func (s *InMemory) Create(_ context.Context, c *models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[c.ID]; exists {
		return fmt.Errorf("code id %s: %w", c.ID, sentinel.ErrConflict)
	}
	if c.Valid {
		if _, taken := s.valid[c.Code]; taken {
			return fmt.Errorf("code value in use: %w", sentinel.ErrConflict)
		}
		s.valid[c.Code] = c.ID
	}
	cp := *c
	s.byID[c.ID] = &cp
	s.byCode[c.Code] = append(s.byCode[c.Code], c.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("code %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// FindByIDForUpdate is FindByID; writers on one code are already serialised
// by the in-memory transaction's shard lock.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error) {
	return s.FindByID(ctx, id)
}

// FindByCode prefers the currently-valid holder of value, else the newest consumed one.
func (s *InMemory) FindByCode(_ context.Context, value string) (*models.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.valid[value]; ok {
		cp := *s.byID[id]
		return &cp, nil
	}
	var newest *models.VerificationCode
	for _, id := range s.byCode[value] {
		c := s.byID[id]
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("code value: %w", sentinel.ErrNotFound)
	}
	cp := *newest
	return &cp, nil
}

// Invalidate consumes the code exactly once; a second call returns ErrAlreadyUsed.
func (s *InMemory) Invalidate(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("code %s: %w", id, sentinel.ErrNotFound)
	}
	if !c.Valid {
		return fmt.Errorf("code %s: %w", id, sentinel.ErrAlreadyUsed)
	}
	c.Invalidate(at)
	delete(s.valid, c.Code)
	return nil
}
