package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter implementation with sliding window and lockout.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Limiter = (*PG)(nil)

// NewPGWithQuerier constructs a limiter on top of any pgx querier (pool, tx or mock).
func NewPGWithQuerier(q pgxQuerier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails, blockFor: blockFor}
}

// Allow reports whether caller is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, caller string) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM proof_limiter WHERE caller=$1`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, caller).Scan(&blockedUntil)
	switch {
	case err == nil:
		if wait := time.Until(blockedUntil); wait > 0 {
			return false, wait, nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for caller.
func (l *PG) Success(ctx context.Context, caller string) error {
	const q = `
INSERT INTO proof_limiter (caller, fail_count, blocked_until, updated_at)
VALUES ($1,0,'epoch',now())
ON CONFLICT (caller)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, caller)
	return err
}

// Failure records a rejected proof; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, caller string) (bool, time.Duration, error) {
	const q = `
INSERT INTO proof_limiter (caller, fail_count, blocked_until, updated_at)
VALUES ($1,1,'epoch',now())
ON CONFLICT (caller) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - proof_limiter.updated_at > $2::interval THEN 1 ELSE proof_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, caller, l.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}
	const upd = `UPDATE proof_limiter SET blocked_until=$2 WHERE caller=$1`
	if _, err := l.pool.Exec(ctx, upd, caller, time.Now().Add(l.blockFor)); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
