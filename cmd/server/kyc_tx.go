package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/platform/tx"
)

const defaultKYCTxTimeout = 5 * time.Second

// kycPostgresTx runs service transactions on postgres. Stores pick the open
// transaction up from the context through tx.Executor.
type kycPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newKYCPostgresTx(db *sql.DB) *kycPostgresTx {
	return &kycPostgresTx{db: db}
}

func (t *kycPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultKYCTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
