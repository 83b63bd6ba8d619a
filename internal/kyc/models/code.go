package models

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "kycdesk/pkg/domain-errors"
)

const (
	CodeLength = 6
	codeMin    = 100000
	codeMax    = 999999
)

// Stable messages the client UI branches on.
const (
	MsgCodeNotFound    = "This Verification Code doesn't exist"
	MsgCodeAlreadyUsed = "The Verification Code has already been used"
	MsgCodeExpired     = "The Verification Code has expired"
)

// DocumentFlags select which workflow steps a code requires.
type DocumentFlags struct {
	IDDoc      bool `json:"idDoc"`
	AddressDoc bool `json:"addressDoc"`
	Images     bool `json:"images"`
	DOB        bool `json:"dob"`
}

// VerificationCode is a single-use, time-bound code tied 1:1 to a ClientRecord.
type VerificationCode struct {
	ID        uuid.UUID
	Code      string
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	Valid     bool
	UsedAt    *time.Time
	Flags     DocumentFlags
}

// NewVerificationCode validates invariants and returns a valid, unused code.
func NewVerificationCode(id uuid.UUID, code, createdBy string, flags DocumentFlags, now time.Time, ttl time.Duration) (*VerificationCode, error) {
	if id == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "code id required")
	}
	if !IsWellFormedCode(code) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "code must be 6 digits")
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creator required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry must be after creation")
	}
	return &VerificationCode{
		ID:        id,
		Code:      code,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Valid:     true,
		Flags:     flags,
	}, nil
}

// CheckUsable reports AlreadyUsed before Expired, matching the order callers expect.
func (c *VerificationCode) CheckUsable(now time.Time) error {
	if !c.Valid {
		return dErrors.New(dErrors.CodeAlreadyUsed, MsgCodeAlreadyUsed)
	}
	if now.After(c.ExpiresAt) {
		return dErrors.New(dErrors.CodeExpired, MsgCodeExpired)
	}
	return nil
}

// Invalidate consumes the code. It can never become valid again.
func (c *VerificationCode) Invalidate(now time.Time) {
	c.Valid = false
	c.UsedAt = &now
}

// GenerateCode draws a uniform 6-digit code from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(codeMin)).String(), nil
}

// IsWellFormedCode reports whether s is exactly six ASCII digits with no leading zero.
func IsWellFormedCode(s string) bool {
	if len(s) != CodeLength || s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
