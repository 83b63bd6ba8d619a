package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "kycdesk/pkg/domain-errors"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Claims represents the JWT claims for client and admin credentials.
// For client tokens Subject is the verification code id.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	clock      func() time.Time
}

type Option func(*JWTService)

// WithClock overrides time.Now for issued-at and expiry claims.
func WithClock(clock func() time.Time) Option {
	return func(s *JWTService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewJWTService(signingKey string, issuer string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateClientToken signs a session credential bound to a verification code.
func (s *JWTService) GenerateClientToken(codeID uuid.UUID, clientName string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		Name:             clientName,
		Role:             RoleClient,
		RegisteredClaims: s.registered(codeID.String(), expiresIn),
	})
}

// GenerateAdminToken signs an admin credential. A non-positive expiresIn
// produces a token without an exp claim.
func (s *JWTService) GenerateAdminToken(adminID uuid.UUID, name, email string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		Name:             name,
		Email:            email,
		Role:             RoleAdmin,
		RegisteredClaims: s.registered(adminID.String(), expiresIn),
	})
}

func (s *JWTService) registered(subject string, expiresIn time.Duration) jwt.RegisteredClaims {
	now := s.clock()
	rc := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   s.issuer,
		ID:       uuid.NewString(),
	}
	if expiresIn > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(expiresIn))
	}
	return rc
}

func (s *JWTService) sign(claims Claims) (string, error) {
	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" || (claims.Role != RoleClient && claims.Role != RoleAdmin) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
