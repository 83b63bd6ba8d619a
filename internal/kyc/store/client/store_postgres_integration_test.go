//go:build integration

package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kycdesk/internal/kyc/models"
	"kycdesk/internal/kyc/store/client"
	"kycdesk/internal/kyc/store/code"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	codes    *code.PostgresStore
	store    *client.PostgresStore
	codeID   uuid.UUID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.codes = code.NewPostgres(s.postgres.DB)
	s.store = client.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "client_artifacts", "client_records", "verification_codes"))

	c, err := models.NewVerificationCode(uuid.New(), "303030", "admin-1", models.DocumentFlags{IDDoc: true}, time.Now().UTC(), time.Hour)
	s.Require().NoError(err)
	s.Require().NoError(s.codes.Create(ctx, c))
	s.codeID = c.ID
}

func (s *PostgresStoreSuite) TestRecordLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec, err := models.NewClientRecord(uuid.New(), s.codeID, "Katherine Johnson", "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUvWxYz", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, rec))

	dup, err := models.NewClientRecord(uuid.New(), s.codeID, "Someone Else", "", now)
	s.Require().NoError(err)
	s.True(errors.Is(s.store.Create(ctx, dup), sentinel.ErrConflict))

	got, err := s.store.UpsertPersonalInfo(ctx, s.codeID, rec.ClientName,
		models.PersonalInfo{DateOfBirth: "1918-08-26", PhoneNo: "555-0100", NIN: "A1"}, now)
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)
	s.Equal("555-0100", got.PhoneNo)

	refs := []models.ArtifactRef{
		{Role: "frontImage", Name: "front.png", FolderID: "f", Link: "https://l/front"},
		{Role: "backImage", Name: "back.png", FolderID: "f", Link: "https://l/back"},
	}
	s.Require().NoError(s.store.AttachArtifacts(ctx, s.codeID, models.StepIDUploaded, refs, now))

	// Re-upload replaces the previous references.
	refs[0].Link = "https://l/front-v2"
	s.Require().NoError(s.store.AttachArtifacts(ctx, s.codeID, models.StepIDUploaded, refs[:1], now))

	got, err = s.store.FindByCodeID(ctx, s.codeID)
	s.Require().NoError(err)
	s.Len(got.Artifacts, 2)
	s.Equal("https://l/front-v2", got.Artifacts["frontImage"].Link)
	s.True(got.Completed(models.StepIDUploaded))
	s.True(got.Completed(models.StepPersonalInfoSaved))
}
