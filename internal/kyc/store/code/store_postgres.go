package code

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kycdesk/internal/kyc/models"
	"kycdesk/pkg/platform/sentinel"
	"kycdesk/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists verification codes. Uniqueness among valid codes is
// enforced by verification_codes_valid_code_idx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const codeColumns = `id, code, created_by, created_at, expires_at, is_valid, used_at,
	has_id, has_address, has_images, has_dob`

func (s *PostgresStore) Create(ctx context.Context, c *models.VerificationCode) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verification_codes (`+codeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Code, c.CreatedBy, c.CreatedAt, c.ExpiresAt, c.Valid, c.UsedAt,
		c.Flags.IDDoc, c.Flags.AddressDoc, c.Flags.Images, c.Flags.DOB)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("insert code: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM verification_codes WHERE id = $1`, id)
	return scanCode(row)
}

// FindByIDForUpdate reads the code and holds its row lock until the
// surrounding transaction ends. Finalize and step completion both take it.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationCode, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM verification_codes WHERE id = $1 FOR UPDATE`, id)
	return scanCode(row)
}

func (s *PostgresStore) FindByCode(ctx context.Context, value string) (*models.VerificationCode, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+codeColumns+` FROM verification_codes
		WHERE code = $1
		ORDER BY is_valid DESC, created_at DESC
		LIMIT 1
	`, value)
	return scanCode(row)
}

// Invalidate flips is_valid with a conditional update so concurrent finalizers
// cannot both succeed.
func (s *PostgresStore) Invalidate(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := tx.Executor(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE verification_codes SET is_valid = FALSE, used_at = $2
		WHERE id = $1 AND is_valid
	`, id, at)
	if err != nil {
		return fmt.Errorf("invalidate code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("invalidate code: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM verification_codes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("invalidate code: %w", err)
	}
	if !exists {
		return fmt.Errorf("code %s: %w", id, sentinel.ErrNotFound)
	}
	return fmt.Errorf("code %s: %w", id, sentinel.ErrAlreadyUsed)
}

func scanCode(row *sql.Row) (*models.VerificationCode, error) {
	var (
		c      models.VerificationCode
		usedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.CreatedBy, &c.CreatedAt, &c.ExpiresAt, &c.Valid, &usedAt,
		&c.Flags.IDDoc, &c.Flags.AddressDoc, &c.Flags.Images, &c.Flags.DOB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find code: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find code: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return &c, nil
}
