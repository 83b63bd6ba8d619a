package store

import (
	"context"
	"fmt"
	"sync"

	"kycdesk/internal/admin/models"
	"kycdesk/pkg/platform/sentinel"
)

// InMemory keeps admin accounts keyed by normalized email.
type InMemory struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Admin
}

func NewInMemory() *InMemory {
	return &InMemory{byEmail: make(map[string]*models.Admin)}
}

// Upsert inserts a or replaces the name and password of the account with
// the same email. The stored id of an existing account is kept.
func (s *InMemory) Upsert(_ context.Context, a *models.Admin) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byEmail[a.Email]; ok {
		cp := *existing
		cp.Name = a.Name
		cp.PasswordHash = a.PasswordHash
		s.byEmail[a.Email] = &cp
		out := cp
		return &out, nil
	}
	cp := *a
	s.byEmail[a.Email] = &cp
	out := cp
	return &out, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("admin %s: %w", email, sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}
