package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycdesk/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer")
var codeID = uuid.New()
var adminID = uuid.New()

func Test_GenerateClientToken(t *testing.T) {
	token, err := jwtService.GenerateClientToken(codeID, "Ada Lovelace", 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, codeID.String(), claims.Subject)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, RoleClient, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateAdminToken_NoExpiry(t *testing.T) {
	token, err := jwtService.GenerateAdminToken(adminID, "Ops", "ops@example.com", 0)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Nil(t, claims.ExpiresAt)

	mw := ToMiddlewareClaims(claims)
	assert.True(t, mw.ExpiresAt.IsZero())
	assert.Equal(t, adminID.String(), mw.Subject)
}

func Test_GenerateAdminToken_WithExpiry(t *testing.T) {
	token, err := jwtService.GenerateAdminToken(adminID, "Ops", "ops@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_GenerateAdminToken_NegativeTTLMeansNoExpiry(t *testing.T) {
	token, err := jwtService.GenerateAdminToken(adminID, "Ops", "ops@example.com", -time.Minute)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err, "a negative ttl must not mint an already expired token")
	assert.Nil(t, claims.ExpiresAt)
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	issuedYesterday := NewJWTService("test-signing-key", "test-issuer",
		WithClock(func() time.Time { return time.Now().Add(-25 * time.Hour) }))
	token, err := issuedYesterday.GenerateClientToken(codeID, "Ada", 24*time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer")
	token, err := other.GenerateClientToken(codeID, "Ada", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: adminID.String(),
			Issuer:  "test-issuer",
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_ValidateToken_FixedClock(t *testing.T) {
	issued := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := NewJWTService("k", "i", WithClock(func() time.Time { return issued }))
	token, err := svc.GenerateClientToken(codeID, "Ada", 24*time.Hour)
	require.NoError(t, err)

	later := NewJWTService("k", "i", WithClock(func() time.Time { return issued.Add(25 * time.Hour) }))
	_, err = later.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateClientToken(codeID, "Ada", time.Hour)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, codeID.String(), claims.Subject)
	assert.Equal(t, RoleClient, claims.Role)
	assert.NotEmpty(t, claims.JTI)
}
