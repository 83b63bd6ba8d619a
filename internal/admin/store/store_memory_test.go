package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kycdesk/internal/admin/models"
	"kycdesk/pkg/platform/sentinel"
)

type AdminStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestAdminStoreSuite(t *testing.T) {
	suite.Run(t, new(AdminStoreSuite))
}

func (s *AdminStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *AdminStoreSuite) admin(name, email, hash string) *models.Admin {
	a, err := models.NewAdmin(uuid.New(), name, email, hash, time.Now())
	s.Require().NoError(err)
	return a
}

func (s *AdminStoreSuite) TestFindByEmailIsCaseInsensitive() {
	_, err := s.store.Upsert(s.ctx, s.admin("Ops", "Ops@KYCDesk.test", "h1"))
	s.Require().NoError(err)

	found, err := s.store.FindByEmail(s.ctx, "  ops@kycdesk.TEST ")
	s.Require().NoError(err)
	s.Equal("Ops", found.Name)
}

func (s *AdminStoreSuite) TestUpsertKeepsIdentity() {
	first, err := s.store.Upsert(s.ctx, s.admin("Ops", "ops@kycdesk.test", "h1"))
	s.Require().NoError(err)

	second, err := s.store.Upsert(s.ctx, s.admin("Operations", "ops@kycdesk.test", "h2"))
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal("Operations", second.Name)
	s.Equal("h2", second.PasswordHash)
}

func (s *AdminStoreSuite) TestUnknownEmail() {
	_, err := s.store.FindByEmail(s.ctx, "nobody@kycdesk.test")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
