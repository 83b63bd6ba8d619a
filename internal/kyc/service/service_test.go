package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	revocation "kycdesk/internal/auth/store/revocation"
	jwttoken "kycdesk/internal/jwt_token"
	"kycdesk/internal/kyc/models"
	clientstore "kycdesk/internal/kyc/store/client"
	codestore "kycdesk/internal/kyc/store/code"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

type stubFolders struct {
	link  string
	err   error
	names []string
}

func (f *stubFolders) CreateClientFolder(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	return f.link, f.err
}

type recordingLedger struct {
	mu        sync.Mutex
	submitted []string
	info      map[string]models.PersonalInfo
	err       error
}

func (l *recordingLedger) MarkSubmitted(_ context.Context, codeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, codeID)
	return l.err
}

func (l *recordingLedger) RecordPersonalInfo(_ context.Context, codeID string, info models.PersonalInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.info == nil {
		l.info = map[string]models.PersonalInfo{}
	}
	l.info[codeID] = info
	return l.err
}

// collidingCodes reports a conflict for the first n creates.
type collidingCodes struct {
	*codestore.InMemory
	n int
}

func (c *collidingCodes) Create(ctx context.Context, v *models.VerificationCode) error {
	if c.n > 0 {
		c.n--
		return sentinel.ErrConflict
	}
	return c.InMemory.Create(ctx, v)
}

// lockCountingCodes counts row-locking reads.
type lockCountingCodes struct {
	*codestore.InMemory
	locks int
}

func (c *lockCountingCodes) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error) {
	c.locks++
	return c.InMemory.FindByIDForUpdate(ctx, id)
}

type ServiceSuite struct {
	suite.Suite
	codes   *codestore.InMemory
	clients *clientstore.InMemory
	trl     *revocation.InMemoryTRL
	ledger  *recordingLedger
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.codes = codestore.NewInMemory()
	s.clients = clientstore.NewInMemory()
	s.trl = revocation.NewInMemoryTRL(func() time.Time { return s.now })
	s.ledger = &recordingLedger{}
	tokens := jwttoken.NewJWTService("service-test-key", "kycdesk-test", jwttoken.WithClock(func() time.Time { return s.now }))
	s.service = New(s.codes, s.clients, NewInMemoryTx(), tokens,
		WithRevoker(s.trl),
		WithLedger(s.ledger),
	)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

// seed stores a code with a fixed value, bypassing the random draw.
func (s *ServiceSuite) seed(value string, flags models.DocumentFlags, ttl time.Duration) *models.VerificationCode {
	c, err := models.NewVerificationCode(uuid.New(), value, "admin-1", flags, s.now, ttl)
	s.Require().NoError(err)
	s.Require().NoError(s.codes.Create(s.ctx, c))
	rec, err := models.NewClientRecord(uuid.New(), c.ID, "Ada Lovelace", "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUvWxYz", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.clients.Create(s.ctx, rec))
	return c
}

func (s *ServiceSuite) callerFor(codeID uuid.UUID) requestcontext.Caller {
	return requestcontext.Caller{
		Subject:   codeID.String(),
		Name:      "Ada Lovelace",
		Role:      jwttoken.RoleClient,
		TokenID:   "jti-" + codeID.String(),
		ExpiresAt: s.now.Add(24 * time.Hour),
	}
}

func (s *ServiceSuite) TestIssue() {
	s.Run("creates code and record stub", func() {
		res, err := s.service.Issue(s.ctx, IssueRequest{
			CreatedBy:  "admin-1",
			ClientName: "  Grace Hopper ",
			Flags:      models.DocumentFlags{IDDoc: true, DOB: true},
			FolderLink: "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUvWxYz",
		})
		s.Require().NoError(err)
		s.True(models.IsWellFormedCode(res.Code))
		s.Equal(s.now.Add(7*24*time.Hour), res.ExpiresAt)

		rec, err := s.clients.FindByCodeID(s.ctx, res.CodeID)
		s.Require().NoError(err)
		s.Equal("Grace Hopper", rec.ClientName)
		s.Equal(models.StepCodeIssued, rec.CurrentStep())
	})

	s.Run("rejects a missing client name", func() {
		_, err := s.service.Issue(s.ctx, IssueRequest{CreatedBy: "admin-1", ClientName: " "})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal("Client Name is missing", err.Error())
	})
}

func (s *ServiceSuite) TestIssueProvisionsFolder() {
	folders := &stubFolders{link: "https://drive.google.com/drive/folders/1ZyXwVuTsRqPoNmLkJiHgFeDcBa"}
	svc := New(s.codes, s.clients, NewInMemoryTx(), jwttoken.NewJWTService("k", "i"), WithFolderProvisioner(folders))

	res, err := svc.Issue(s.ctx, IssueRequest{CreatedBy: "admin-1", ClientName: "Grace Hopper"})
	s.Require().NoError(err)
	s.Equal(folders.link, res.FolderLink)
	s.Equal([]string{"Grace Hopper"}, folders.names)

	folders.err = errors.New("drive quota exceeded")
	_, err = svc.Issue(s.ctx, IssueRequest{CreatedBy: "admin-1", ClientName: "Grace Hopper"})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}

func (s *ServiceSuite) TestIssueRedrawsOnCollision() {
	s.Run("retries until a free value is found", func() {
		codes := &collidingCodes{InMemory: codestore.NewInMemory(), n: 2}
		svc := New(codes, clientstore.NewInMemory(), NewInMemoryTx(), jwttoken.NewJWTService("k", "i"))
		res, err := svc.Issue(s.ctx, IssueRequest{CreatedBy: "admin-1", ClientName: "Grace"})
		s.Require().NoError(err)
		_, err = codes.FindByID(s.ctx, res.CodeID)
		s.NoError(err)
	})

	s.Run("gives up after the retry budget", func() {
		codes := &collidingCodes{InMemory: codestore.NewInMemory(), n: 100}
		svc := New(codes, clientstore.NewInMemory(), NewInMemoryTx(), jwttoken.NewJWTService("k", "i"), WithMaxIssueRetries(3))
		_, err := svc.Issue(s.ctx, IssueRequest{CreatedBy: "admin-1", ClientName: "Grace"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(97, codes.n)
	})
}

func (s *ServiceSuite) TestAuthenticate() {
	s.Run("never issued", func() {
		_, err := s.service.Authenticate(s.ctx, "654321")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(models.MsgCodeNotFound, err.Error())
	})

	s.Run("missing value", func() {
		_, err := s.service.Authenticate(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("expired", func() {
		s.seed("222222", models.DocumentFlags{}, time.Hour)
		_, err := s.service.Authenticate(requestcontext.WithTime(s.ctx, s.now.Add(2*time.Hour)), "222222")
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
		s.Equal(models.MsgCodeExpired, err.Error())
	})

	s.Run("used wins over expired", func() {
		c := s.seed("333333", models.DocumentFlags{}, time.Hour)
		s.Require().NoError(s.codes.Invalidate(s.ctx, c.ID, s.now))
		_, err := s.service.Authenticate(requestcontext.WithTime(s.ctx, s.now.Add(2*time.Hour)), "333333")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
	})

	s.Run("valid code returns the session projection", func() {
		c := s.seed("444444", models.DocumentFlags{IDDoc: true, DOB: true}, 7*24*time.Hour)
		sess, err := s.service.Authenticate(s.ctx, " 444444 ")
		s.Require().NoError(err)
		s.Equal(c.ID, sess.CodeID)
		s.Equal("Ada Lovelace", sess.ClientName)
		s.True(sess.Flags.IDDoc)
		s.NotEmpty(sess.Token)
		s.Equal(models.StepAuthenticated, sess.Step)
		s.Equal(models.StepPersonalInfoSaved, sess.NextStep)

		rec, err := s.clients.FindByCodeID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(rec.Completed(models.StepAuthenticated))
	})
}

func (s *ServiceSuite) TestReauthenticate() {
	c := s.seed("555555", models.DocumentFlags{Images: true}, time.Hour)
	other := s.seed("565656", models.DocumentFlags{}, time.Hour)

	sess, err := s.service.Reauthenticate(s.ctx, s.callerFor(c.ID), "555555", "presented-token")
	s.Require().NoError(err)
	s.Equal("presented-token", sess.Token)
	s.True(sess.Flags.Images)

	_, err = s.service.Reauthenticate(s.ctx, s.callerFor(other.ID), "555555", "presented-token")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Reauthenticate(s.ctx, s.callerFor(c.ID), "", "presented-token")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestSavePersonalInfo() {
	c := s.seed("666666", models.DocumentFlags{DOB: true, IDDoc: true}, time.Hour)
	caller := s.callerFor(c.ID)
	_, err := s.service.Authenticate(s.ctx, "666666")
	s.Require().NoError(err)

	s.Run("dob and phone are required", func() {
		_, err := s.service.SavePersonalInfo(s.ctx, caller, PersonalInfoRequest{DateOfBirth: "1990-01-01"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("body id must match the session", func() {
		_, err := s.service.SavePersonalInfo(s.ctx, caller, PersonalInfoRequest{
			CodeID: uuid.NewString(), DateOfBirth: "1990-01-01", PhoneNo: "0800",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("saves and mirrors to the ledger", func() {
		rec, err := s.service.SavePersonalInfo(s.ctx, caller, PersonalInfoRequest{
			CodeID: c.ID.String(), DateOfBirth: "1990-01-01", PhoneNo: "0800", NIN: "NIN-1",
		})
		s.Require().NoError(err)
		s.Equal("0800", rec.PhoneNo)
		s.Equal("NIN-1", s.ledger.info[c.ID.String()].NIN)
	})

	s.Run("ledger failure is not surfaced", func() {
		s.ledger.err = errors.New("sheets unavailable")
		_, err := s.service.SavePersonalInfo(s.ctx, caller, PersonalInfoRequest{DateOfBirth: "1990-01-02", PhoneNo: "0801"})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestWorkflowGate() {
	s.Run("later step before an earlier required one", func() {
		c := s.seed("777777", models.DocumentFlags{DOB: true, IDDoc: true}, time.Hour)
		_, err := s.service.BeginStep(s.ctx, s.callerFor(c.ID), models.StepIDUploaded)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("steps without a flag are skipped", func() {
		c := s.seed("787878", models.DocumentFlags{AddressDoc: true}, time.Hour)
		_, err := s.service.Authenticate(s.ctx, "787878")
		s.Require().NoError(err)
		target, err := s.service.BeginStep(s.ctx, s.callerFor(c.ID), models.StepAddressUploaded)
		s.Require().NoError(err)
		s.Equal("Ada Lovelace", target.Record.ClientName)
	})

	s.Run("steps not requested are rejected", func() {
		c := s.seed("797979", models.DocumentFlags{AddressDoc: true}, time.Hour)
		_, err := s.service.BeginStep(s.ctx, s.callerFor(c.ID), models.StepBiometricsUploaded)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("finalize requires every requested step", func() {
		c := s.seed("808080", models.DocumentFlags{IDDoc: true}, time.Hour)
		_, err := s.service.Authenticate(s.ctx, "808080")
		s.Require().NoError(err)
		err = s.service.Finalize(s.ctx, s.callerFor(c.ID), "")
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *ServiceSuite) TestFinalize() {
	c := s.seed("818181", models.DocumentFlags{}, time.Hour)
	caller := s.callerFor(c.ID)
	_, err := s.service.Authenticate(s.ctx, "818181")
	s.Require().NoError(err)

	s.Run("id must match the session", func() {
		err := s.service.Finalize(s.ctx, caller, uuid.NewString())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("consumes the code and revokes the session", func() {
		s.ledger.err = errors.New("sheets unavailable")
		s.Require().NoError(s.service.Finalize(s.ctx, caller, c.ID.String()))

		stored, err := s.codes.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.False(stored.Valid)
		s.Equal([]string{c.ID.String()}, s.ledger.submitted)

		revoked, err := s.trl.IsRevoked(s.ctx, caller.TokenID)
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("second finalize is rejected", func() {
		err := s.service.Finalize(s.ctx, caller, "")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
		s.Len(s.ledger.submitted, 1)
	})
}

func (s *ServiceSuite) TestFullJourney() {
	c := s.seed("123456", models.DocumentFlags{IDDoc: true, AddressDoc: true, Images: true, DOB: true}, 7*24*time.Hour)
	caller := s.callerFor(c.ID)

	_, err := s.service.Authenticate(s.ctx, "123456")
	s.Require().NoError(err)
	_, err = s.service.SavePersonalInfo(s.ctx, caller, PersonalInfoRequest{DateOfBirth: "1815-12-10", PhoneNo: "0800"})
	s.Require().NoError(err)

	for _, step := range []models.Step{models.StepIDUploaded, models.StepAddressUploaded, models.StepBiometricsUploaded} {
		_, err := s.service.BeginStep(s.ctx, caller, step)
		s.Require().NoError(err, "begin %s", step)
		s.Require().NoError(s.service.CompleteStep(s.ctx, caller, step, []models.ArtifactRef{
			{Role: string(step), Name: string(step) + ".png", FolderID: "f", Link: "https://l/" + string(step)},
		}))
	}

	rec, err := s.clients.FindByCodeID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StepFinalized, rec.NextStep(c.Flags))
	s.Len(rec.Artifacts, 3)

	s.Require().NoError(s.service.Finalize(s.ctx, caller, c.ID.String()))

	_, err = s.service.Authenticate(s.ctx, "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
	_, err = s.service.Reauthenticate(s.ctx, caller, "123456", "t")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
	err = s.service.CompleteStep(s.ctx, caller, models.StepIDUploaded, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
}

func (s *ServiceSuite) TestStepCompletionAndFinalizeLockTheCode() {
	codes := &lockCountingCodes{InMemory: s.codes}
	tokens := jwttoken.NewJWTService("service-test-key", "kycdesk-test", jwttoken.WithClock(func() time.Time { return s.now }))
	svc := New(codes, s.clients, NewInMemoryTx(), tokens)

	c := s.seed("246810", models.DocumentFlags{AddressDoc: true}, time.Hour)
	caller := s.callerFor(c.ID)
	_, err := svc.Authenticate(s.ctx, "246810")
	s.Require().NoError(err)
	s.Equal(0, codes.locks)

	ref := []models.ArtifactRef{{Role: "addressProof", Name: "a.pdf", FolderID: "f", Link: "https://l/a"}}
	s.Require().NoError(svc.CompleteStep(s.ctx, caller, models.StepAddressUploaded, ref))
	s.Equal(1, codes.locks)

	s.Require().NoError(svc.Finalize(s.ctx, caller, ""))
	s.Equal(2, codes.locks)

	// a re-upload racing past BeginStep finds the code consumed under the lock
	err = svc.CompleteStep(s.ctx, caller, models.StepAddressUploaded, ref)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyUsed))
	s.Equal(3, codes.locks)
}

func (s *ServiceSuite) TestInMemoryTxHonoursCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	called := false
	err := NewInMemoryTx().RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.False(called)
}
