package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "kycdesk/pkg/domain-errors"
)

// Admin is a back-office account allowed to issue verification codes.
type Admin struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewAdmin normalizes name and email. Emails are compared case-insensitively.
func NewAdmin(id uuid.UUID, name, email, passwordHash string, now time.Time) (*Admin, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admin name and email required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admin password hash required")
	}
	return &Admin{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
