package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kycdesk/internal/admin/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/requestcontext"
)

type Store interface {
	Upsert(ctx context.Context, a *models.Admin) (*models.Admin, error)
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type TokenIssuer interface {
	GenerateAdminToken(adminID uuid.UUID, name, email string, expiresIn time.Duration) (string, error)
}

const minPasswordLength = 8

type Service struct {
	store    Store
	tokens   TokenIssuer
	tokenTTL time.Duration
	cost     int
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenTTL sets the admin token lifetime. Zero issues tokens without expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateToken signs an admin credential for an account matching both name
// and email whose password verifies.
func (s *Service) GenerateToken(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "Name, Email and password are required")
	}

	admin, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "No user found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin")
	}
	if !strings.EqualFold(admin.Name, name) {
		return "", dErrors.New(dErrors.CodeNotFound, "No user found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "admin password mismatch",
			"admin_id", admin.ID.String(),
			"client_ip", requestcontext.ClientIP(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		return "", dErrors.New(dErrors.CodeUnauthenticated, "Invalid Credentials")
	}

	token, err := s.tokens.GenerateAdminToken(admin.ID, admin.Name, admin.Email, s.tokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign admin token")
	}
	s.logger.InfoContext(ctx, "admin token issued",
		"admin_id", admin.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return token, nil
}

// CreateAdmin creates an account or resets the name and password of the
// account holding email.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (*models.Admin, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Name, Email and password are required")
	}
	if len(password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	admin, err := models.NewAdmin(uuid.New(), name, email, string(hash), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Upsert(ctx, admin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save admin")
	}
	s.logger.InfoContext(ctx, "admin account saved",
		"admin_id", stored.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return stored, nil
}

// Bootstrap seeds the configured admin. Incomplete settings are skipped.
func (s *Service) Bootstrap(ctx context.Context, name, email, password string) error {
	if name == "" || email == "" || password == "" {
		s.logger.InfoContext(ctx, "no bootstrap admin configured")
		return nil
	}
	_, err := s.CreateAdmin(ctx, name, email, password)
	return err
}
