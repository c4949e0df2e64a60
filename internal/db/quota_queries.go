package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrQuotaExceeded reports a consume attempt that would push usage past the limit.
var ErrQuotaExceeded = errors.New("translation quota exceeded")

type QuotaRow struct {
	UserID     int64     `json:"user_id"`
	QuotaUsed  int       `json:"quota_used"`
	QuotaLimit int       `json:"quota_limit"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EnsureQuota creates the per-user quota row if it does not exist yet.
func (p *Pool) EnsureQuota(ctx context.Context, userID int64, defaultLimit int) (*QuotaRow, error) {
	if defaultLimit < 0 {
		defaultLimit = 0
	}

	const ensureQ = `
INSERT INTO parrot.user_quotas (user_id, quota_used, quota_limit, updated_at)
VALUES ($1, 0, $2, now())
ON CONFLICT (user_id) DO NOTHING
`

	if _, err := p.Exec(ctx, ensureQ, userID, defaultLimit); err != nil {
		return nil, fmt.Errorf("ensure quota row: %w", err)
	}

	return p.GetQuota(ctx, userID)
}

func (p *Pool) GetQuota(ctx context.Context, userID int64) (*QuotaRow, error) {
	const q = `
SELECT
	user_id,
	quota_used,
	quota_limit,
	updated_at
FROM parrot.user_quotas
WHERE user_id = $1
LIMIT 1
`

	var row QuotaRow
	if err := p.QueryRow(ctx, q, userID).Scan(
		&row.UserID,
		&row.QuotaUsed,
		&row.QuotaLimit,
		&row.UpdatedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query quota: %w", err)
	}
	return &row, nil
}

// TryConsumeQuota atomically admits and charges one consume attempt. The
// conditional UPDATE leaves the row untouched when the headroom is
// insufficient, so concurrent requests can never overdraw the limit.
func (p *Pool) TryConsumeQuota(ctx context.Context, userID int64, units int) (*QuotaRow, error) {
	if units < 1 {
		return nil, fmt.Errorf("units must be >= 1")
	}

	const q = `
UPDATE parrot.user_quotas
SET
	quota_used = quota_used + $2,
	updated_at = now()
WHERE user_id = $1
  AND quota_used + $2 <= quota_limit
RETURNING
	user_id,
	quota_used,
	quota_limit,
	updated_at
`

	var row QuotaRow
	err := p.QueryRow(ctx, q, userID, units).Scan(
		&row.UserID,
		&row.QuotaUsed,
		&row.QuotaLimit,
		&row.UpdatedAt,
	)
	if err == nil {
		return &row, nil
	}
	if !IsNoRows(err) {
		return nil, fmt.Errorf("consume quota: %w", err)
	}

	// No row updated: either the user has no quota row or the limit is hit.
	if _, getErr := p.GetQuota(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrQuotaExceeded
}

// GrantQuota raises the limit by extra units. Usage is never touched, so
// already-consumed credits stay accounted for.
func (p *Pool) GrantQuota(ctx context.Context, userID int64, extra int) (*QuotaRow, error) {
	if extra < 1 {
		return nil, fmt.Errorf("extra must be >= 1")
	}

	const q = `
UPDATE parrot.user_quotas
SET
	quota_limit = quota_limit + $2,
	updated_at = now()
WHERE user_id = $1
RETURNING
	user_id,
	quota_used,
	quota_limit,
	updated_at
`

	var row QuotaRow
	if err := p.QueryRow(ctx, q, userID, extra).Scan(
		&row.UserID,
		&row.QuotaUsed,
		&row.QuotaLimit,
		&row.UpdatedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("grant quota: %w", err)
	}
	return &row, nil
}
