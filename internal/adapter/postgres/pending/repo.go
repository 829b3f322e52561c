// Package pending implements the deferred-goodnight repository using
// PostgreSQL. A user holds at most one pending goodnight; a newer one
// replaces the older via upsert.
package pending

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Repo provides pending-goodnight persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new pending-goodnight repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

const pendingColumns = `user_id, checkin_id, bed_time, raw_text, note, created_at`

const upsertPendingSQL = `
INSERT INTO pending_goodnights (user_id, checkin_id, bed_time, raw_text, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE
SET checkin_id = EXCLUDED.checkin_id,
    bed_time   = EXCLUDED.bed_time,
    raw_text   = EXCLUDED.raw_text,
    note       = EXCLUDED.note,
    created_at = EXCLUDED.created_at`

const getPendingByUserSQL = `
SELECT ` + pendingColumns + `
FROM pending_goodnights
WHERE user_id = $1`

const listExpiredSQL = `
SELECT ` + pendingColumns + `
FROM pending_goodnights
WHERE created_at <= $1
ORDER BY created_at`

const deletePendingByUserSQL = `DELETE FROM pending_goodnights WHERE user_id = $1`

const deleteAllPendingSQL = `DELETE FROM pending_goodnights`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByUser returns the user's pending goodnight.
// Returns domain.ErrNotFound if there is none.
func (r *Repo) GetByUser(ctx context.Context, userID string) (domain.PendingGoodnight, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	p, err := scanPending(querier.QueryRow(ctx, getPendingByUserSQL, userID))
	if err != nil {
		return domain.PendingGoodnight{}, postgres.MapError(err, "pending_goodnight", userID)
	}

	return p, nil
}

// ListExpired returns pending goodnights created at or before the cutoff,
// oldest first. Used by the grace-period sweep.
func (r *Repo) ListExpired(ctx context.Context, cutoff time.Time) ([]domain.PendingGoodnight, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listExpiredSQL, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired pending_goodnights: %w", err)
	}
	defer rows.Close()

	var pendings []domain.PendingGoodnight
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("list expired pending_goodnights: %w", err)
		}
		pendings = append(pendings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired pending_goodnights: %w", err)
	}

	if pendings == nil {
		pendings = []domain.PendingGoodnight{}
	}

	return pendings, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Upsert stores the user's pending goodnight, replacing any existing one.
func (r *Repo) Upsert(ctx context.Context, p domain.PendingGoodnight) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := querier.Exec(ctx, upsertPendingSQL,
		p.UserID, p.CheckinID, p.BedTime.UTC().Truncate(time.Microsecond),
		p.RawText, p.Note, p.CreatedAt.UTC().Truncate(time.Microsecond),
	)
	if err != nil {
		return postgres.MapError(err, "pending_goodnight", p.UserID)
	}

	return nil
}

// DeleteByUser removes the user's pending goodnight if present. Idempotent;
// reports whether a row was removed.
func (r *Repo) DeleteByUser(ctx context.Context, userID string) (bool, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deletePendingByUserSQL, userID)
	if err != nil {
		return false, fmt.Errorf("delete pending_goodnight: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteAll removes every pending goodnight. Admin wipe only.
func (r *Repo) DeleteAll(ctx context.Context) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteAllPendingSQL)
	if err != nil {
		return 0, fmt.Errorf("delete all pending_goodnights: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanPending(row pgx.Row) (domain.PendingGoodnight, error) {
	var p domain.PendingGoodnight
	if err := row.Scan(&p.UserID, &p.CheckinID, &p.BedTime, &p.RawText, &p.Note, &p.CreatedAt); err != nil {
		return domain.PendingGoodnight{}, err
	}
	return p, nil
}
