// Package session implements the sleep-session repository using PostgreSQL.
// Sessions carry a stored state tag so lifecycle queries never re-derive
// state from column nullability.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Repo provides session persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new session repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

const sessionColumns = `id, user_id, username, bed_time, wake_time, sleep_minutes,
       evening_rating, evening_rating_status, morning_rating, state, note, morning_note`

const createSessionSQL = `
INSERT INTO sessions (user_id, username, bed_time, wake_time, sleep_minutes,
                      evening_rating, evening_rating_status, morning_rating, state, note, morning_note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

const listOpenByUserSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1 AND state = 'OPEN'
ORDER BY id`

const getLatestByUserSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1
ORDER BY id DESC
LIMIT 1`

const getLatestNeedingEveningSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1 AND evening_rating_status = 'MISSING'
ORDER BY id DESC
LIMIT 1`

const getLatestNeedingMorningSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1 AND state != 'OPEN' AND morning_rating IS NULL
ORDER BY id DESC
LIMIT 1`

const updateSessionSQL = `
UPDATE sessions
SET username = $2, bed_time = $3, wake_time = $4, sleep_minutes = $5,
    evening_rating = $6, evening_rating_status = $7, morning_rating = $8,
    state = $9, note = $10, morning_note = $11
WHERE id = $1`

const deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

const deleteAllSessionsSQL = `DELETE FROM sessions`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListOpenByUser returns the user's open sessions, oldest first.
func (r *Repo) ListOpenByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listOpenByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}

	return sessions, nil
}

// GetLatestByUser returns the most recently created session for the user.
// Returns domain.ErrNotFound if the user has none.
func (r *Repo) GetLatestByUser(ctx context.Context, userID string) (domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	s, err := scanSession(querier.QueryRow(ctx, getLatestByUserSQL, userID))
	if err != nil {
		return domain.Session{}, postgres.MapError(err, "session", userID)
	}

	return s, nil
}

// GetLatestNeedingEvening returns the newest session whose evening rating
// slot is still MISSING. Returns domain.ErrNotFound if there is none.
func (r *Repo) GetLatestNeedingEvening(ctx context.Context, userID string) (domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	s, err := scanSession(querier.QueryRow(ctx, getLatestNeedingEveningSQL, userID))
	if err != nil {
		return domain.Session{}, postgres.MapError(err, "session", userID)
	}

	return s, nil
}

// GetLatestNeedingMorning returns the newest closed session without a morning
// rating. Returns domain.ErrNotFound if there is none.
func (r *Repo) GetLatestNeedingMorning(ctx context.Context, userID string) (domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	s, err := scanSession(querier.QueryRow(ctx, getLatestNeedingMorningSQL, userID))
	if err != nil {
		return domain.Session{}, postgres.MapError(err, "session", userID)
	}

	return s, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new session and returns it with the generated id.
func (r *Repo) Create(ctx context.Context, s domain.Session) (domain.Session, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	normalizeTimes(&s)

	err := querier.QueryRow(ctx, createSessionSQL,
		s.UserID, s.Username, s.BedTime, s.WakeTime, s.SleepMinutes,
		s.EveningRating, s.EveningRatingStatus.String(), s.MorningRating,
		s.State.String(), s.Note, s.MorningNote,
	).Scan(&s.ID)
	if err != nil {
		return domain.Session{}, postgres.MapError(err, "session", s.UserID)
	}

	return s, nil
}

// Update overwrites every mutable column of the session.
// Returns domain.ErrNotFound if the row does not exist.
func (r *Repo) Update(ctx context.Context, s domain.Session) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	normalizeTimes(&s)

	tag, err := querier.Exec(ctx, updateSessionSQL,
		s.ID, s.Username, s.BedTime, s.WakeTime, s.SleepMinutes,
		s.EveningRating, s.EveningRatingStatus.String(), s.MorningRating,
		s.State.String(), s.Note, s.MorningNote,
	)
	if err != nil {
		return postgres.MapError(err, "session", s.ID)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", s.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a session by id.
// Returns domain.ErrNotFound if the row does not exist.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return postgres.MapError(err, "session", id)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteAll removes every session row. Admin wipe only.
func (r *Repo) DeleteAll(ctx context.Context) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteAllSessionsSQL)
	if err != nil {
		return 0, fmt.Errorf("delete all sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s             domain.Session
		eveningStatus string
		state         string
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Username, &s.BedTime, &s.WakeTime, &s.SleepMinutes,
		&s.EveningRating, &eveningStatus, &s.MorningRating, &state, &s.Note, &s.MorningNote,
	); err != nil {
		return domain.Session{}, err
	}
	s.EveningRatingStatus = domain.RatingStatus(eveningStatus)
	s.State = domain.SessionState(state)
	return s, nil
}

func scanSessions(rows pgx.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		sessions = []domain.Session{}
	}

	return sessions, nil
}

func normalizeTimes(s *domain.Session) {
	s.BedTime = s.BedTime.UTC().Truncate(time.Microsecond)
	if s.WakeTime != nil {
		w := s.WakeTime.UTC().Truncate(time.Microsecond)
		s.WakeTime = &w
	}
}
