package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kycdesk/internal/admin/models"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, a *models.Admin) (*models.Admin, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO admins (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash
		RETURNING id, name, email, password_hash, created_at
	`, a.ID, a.Name, a.Email, a.PasswordHash, a.CreatedAt)
	out, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("upsert admin: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM admins WHERE email = $1
	`, models.NormalizeEmail(email))
	a, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", email, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return a, nil
}

func scanAdmin(row *sql.Row) (*models.Admin, error) {
	var a models.Admin
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
