// Package checkin implements the check-in log repository using PostgreSQL.
// Check-in rows are append-only; they are removed only by reset, undo, or
// pending-goodnight replacement.
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Repo provides check-in log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new check-in repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

const createCheckinSQL = `
INSERT INTO checkins (user_id, username, kind, ts_utc, raw_text)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

const createCheckinWithIDSQL = `
INSERT INTO checkins (id, user_id, username, kind, ts_utc, raw_text)
VALUES ($1, $2, $3, $4, $5, $6)`

const getCheckinByIDSQL = `
SELECT id, user_id, username, kind, ts_utc, raw_text
FROM checkins
WHERE id = $1`

const getLatestByUserKindBeforeSQL = `
SELECT id, user_id, username, kind, ts_utc, raw_text
FROM checkins
WHERE user_id = $1 AND kind = $2 AND ts_utc <= $3
ORDER BY ts_utc DESC, id DESC
LIMIT 1`

const getLatestByUserSQL = `
SELECT id, user_id, username, kind, ts_utc, raw_text
FROM checkins
WHERE user_id = $1
ORDER BY id DESC
LIMIT 1`

const deleteCheckinSQL = `DELETE FROM checkins WHERE id = $1`

const deleteAllCheckinsSQL = `DELETE FROM checkins`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a check-in by primary key.
// Returns domain.ErrNotFound if the row does not exist.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Checkin, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getCheckinByIDSQL, id)
	c, err := scanCheckin(row)
	if err != nil {
		return domain.Checkin{}, postgres.MapError(err, "checkin", id)
	}

	return c, nil
}

// GetLatestByUserKindBefore returns the user's most recent check-in of one
// kind stamped at or before cutoff. Check-ins are stamped at their resolved
// bed or wake instant, so this picks the record that produced a session with
// that bedtime even when later check-ins exist.
// Returns domain.ErrNotFound if there is none.
func (r *Repo) GetLatestByUserKindBefore(ctx context.Context, userID string, kind domain.CheckinKind, cutoff time.Time) (domain.Checkin, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	c, err := scanCheckin(querier.QueryRow(ctx, getLatestByUserKindBeforeSQL, userID, kind.String(), cutoff.UTC()))
	if err != nil {
		return domain.Checkin{}, postgres.MapError(err, "checkin", userID)
	}

	return c, nil
}

// GetLatestByUser returns the user's most recent check-in of any kind.
// Returns domain.ErrNotFound if there is none.
func (r *Repo) GetLatestByUser(ctx context.Context, userID string) (domain.Checkin, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	c, err := scanCheckin(querier.QueryRow(ctx, getLatestByUserSQL, userID))
	if err != nil {
		return domain.Checkin{}, postgres.MapError(err, "checkin", userID)
	}

	return c, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new check-in row and returns it with the generated id.
func (r *Repo) Create(ctx context.Context, c domain.Checkin) (domain.Checkin, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	c.Timestamp = c.Timestamp.UTC().Truncate(time.Microsecond)

	err := querier.QueryRow(ctx, createCheckinSQL,
		c.UserID, c.Username, c.Kind.String(), c.Timestamp, c.RawText,
	).Scan(&c.ID)
	if err != nil {
		return domain.Checkin{}, postgres.MapError(err, "checkin", c.UserID)
	}

	return c, nil
}

// CreateWithID reinserts a check-in under its original id. Used by undo
// replay so later references keep pointing at the same row.
func (r *Repo) CreateWithID(ctx context.Context, c domain.Checkin) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := querier.Exec(ctx, createCheckinWithIDSQL,
		c.ID, c.UserID, c.Username, c.Kind.String(), c.Timestamp.UTC().Truncate(time.Microsecond), c.RawText,
	)
	if err != nil {
		return postgres.MapError(err, "checkin", c.ID)
	}

	return nil
}

// Delete removes a check-in by id.
// Returns domain.ErrNotFound if the row does not exist.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteCheckinSQL, id)
	if err != nil {
		return postgres.MapError(err, "checkin", id)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("checkin %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteAll removes every check-in row. Admin wipe only.
func (r *Repo) DeleteAll(ctx context.Context) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteAllCheckinsSQL)
	if err != nil {
		return 0, fmt.Errorf("delete all checkins: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanCheckin(row pgx.Row) (domain.Checkin, error) {
	var (
		c    domain.Checkin
		kind string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Username, &kind, &c.Timestamp, &c.RawText); err != nil {
		return domain.Checkin{}, err
	}
	c.Kind = domain.CheckinKind(kind)
	return c, nil
}
