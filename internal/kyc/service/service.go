package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycdesk/internal/kyc/metrics"
	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

type CodeStore interface {
	Create(ctx context.Context, c *models.VerificationCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error)
	FindByCode(ctx context.Context, value string) (*models.VerificationCode, error)
	Invalidate(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ClientStore interface {
	Create(ctx context.Context, rec *models.ClientRecord) error
	FindByCodeID(ctx context.Context, codeID uuid.UUID) (*models.ClientRecord, error)
	MarkStep(ctx context.Context, codeID uuid.UUID, step models.Step, at time.Time) error
	UpsertPersonalInfo(ctx context.Context, codeID uuid.UUID, clientName string, info models.PersonalInfo, at time.Time) (*models.ClientRecord, error)
	AttachArtifacts(ctx context.Context, codeID uuid.UUID, step models.Step, refs []models.ArtifactRef, at time.Time) error
}

// TxRunner runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type TokenIssuer interface {
	GenerateClientToken(codeID uuid.UUID, clientName string, expiresIn time.Duration) (string, error)
}

type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// FolderProvisioner creates a remote folder for a new client and returns its link.
type FolderProvisioner interface {
	CreateClientFolder(ctx context.Context, clientName string) (string, error)
}

// Ledger mirrors client status to the external tabular record.
type Ledger interface {
	MarkSubmitted(ctx context.Context, codeID string) error
	RecordPersonalInfo(ctx context.Context, codeID string, info models.PersonalInfo) error
}

const (
	defaultCodeTTL        = 7 * 24 * time.Hour
	defaultClientTokenTTL = 24 * time.Hour
	defaultMaxRetries     = 10
)

// Service owns the verification journey: code issuance, session checks,
// step completion and finalization.
type Service struct {
	codes   CodeStore
	clients ClientStore
	tx      TxRunner
	tokens  TokenIssuer

	revoker TokenRevoker
	folders FolderProvisioner
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics

	codeTTL    time.Duration
	tokenTTL   time.Duration
	maxRetries int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRevoker(r TokenRevoker) Option {
	return func(s *Service) {
		s.revoker = r
	}
}

func WithFolderProvisioner(p FolderProvisioner) Option {
	return func(s *Service) {
		s.folders = p
	}
}

func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

func WithClientTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func WithMaxIssueRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func New(codes CodeStore, clients ClientStore, tx TxRunner, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		codes:      codes,
		clients:    clients,
		tx:         tx,
		tokens:     tokens,
		logger:     slog.Default(),
		codeTTL:    defaultCodeTTL,
		tokenTTL:   defaultClientTokenTTL,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientTokenTTL is the lifetime of session credentials, used for the cookie max age.
func (s *Service) ClientTokenTTL() time.Duration {
	return s.tokenTTL
}

// loadSession fetches the code and its record and checks the code is still usable.
func (s *Service) loadSession(ctx context.Context, codeID uuid.UUID) (*models.VerificationCode, *models.ClientRecord, error) {
	return s.session(ctx, codeID, s.codes.FindByID)
}

// lockSession is loadSession holding the code row until the transaction in
// ctx ends, so it serialises with Finalize.
func (s *Service) lockSession(ctx context.Context, codeID uuid.UUID) (*models.VerificationCode, *models.ClientRecord, error) {
	return s.session(ctx, codeID, s.codes.FindByIDForUpdate)
}

func (s *Service) session(ctx context.Context, codeID uuid.UUID, find func(context.Context, uuid.UUID) (*models.VerificationCode, error)) (*models.VerificationCode, *models.ClientRecord, error) {
	c, err := find(ctx, codeID)
	if err != nil {
		return nil, nil, translateCodeErr(err)
	}
	if err := c.CheckUsable(requestcontext.Now(ctx)); err != nil {
		return nil, nil, err
	}
	rec, err := s.clients.FindByCodeID(ctx, codeID)
	if err != nil {
		return nil, nil, translateRecordErr(err)
	}
	return c, rec, nil
}

// subjectCodeID resolves the code a client caller acts on. A body supplied id
// must match the credential subject.
func subjectCodeID(subject, bodyID string) (uuid.UUID, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "You are not authorized")
	}
	if bodyID != "" && bodyID != subject {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "You are not authorized")
	}
	return id, nil
}

func translateCodeErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, models.MsgCodeNotFound)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyUsed, models.MsgCodeAlreadyUsed)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification code")
	}
}

func translateRecordErr(err error) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return dErrors.New(dErrors.CodeAlreadyUsed, models.MsgCodeAlreadyUsed)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "client record missing for verification code")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client record")
}
