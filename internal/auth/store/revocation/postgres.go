package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kycdesk/pkg/platform/tx"
)

// PostgresTRL persists revoked token JTIs in PostgreSQL. Used when a database
// is configured but Redis is not.
type PostgresTRL struct {
	db    *sql.DB
	clock Clock
}

func NewPostgresTRL(db *sql.DB, clock Clock) *PostgresTRL {
	if clock == nil {
		clock = time.Now
	}
	return &PostgresTRL{db: db, clock: clock}
}

// RevokeToken adds a token to the revocation list with TTL. It joins an open
// transaction so a failed finalize leaves the token usable.
func (t *PostgresTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	_, err := tx.Executor(ctx, t.db).ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
	`, jti, t.clock().Add(ttl))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token is in the revocation list.
func (t *PostgresTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	err := t.db.QueryRowContext(ctx, `SELECT expires_at FROM token_revocations WHERE jti = $1`, jti).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return !t.clock().After(expiresAt), nil
}

// PurgeExpired deletes entries whose tokens have expired anyway.
func (t *PostgresTRL) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at < $1`, t.clock())
	if err != nil {
		return 0, fmt.Errorf("purge token revocations: %w", err)
	}
	return res.RowsAffected()
}
