package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// UniqueUserID returns a short unique chat-platform user id so parallel tests
// sharing one database never collide.
func UniqueUserID() string {
	return "u-" + uuid.New().String()[:8]
}

// SeedCheckin inserts a raw checkin row and returns it with the generated id.
func SeedCheckin(t *testing.T, pool *pgxpool.Pool, userID string, kind domain.CheckinKind, ts time.Time) domain.Checkin {
	t.Helper()
	ctx := context.Background()

	c := domain.Checkin{
		UserID:    userID,
		Username:  "seed-" + userID,
		Kind:      kind,
		Timestamp: ts.UTC().Truncate(time.Microsecond),
		RawText:   "seed " + kind.String(),
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO checkins (user_id, username, kind, ts_utc, raw_text)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.UserID, c.Username, c.Kind.String(), c.Timestamp, c.RawText,
	).Scan(&c.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedCheckin insert: %v", err)
	}

	return c
}

// SeedOpenSession inserts an open session with the given bedtime and an
// evening rating slot still MISSING.
func SeedOpenSession(t *testing.T, pool *pgxpool.Pool, userID string, bedTime time.Time) domain.Session {
	t.Helper()
	ctx := context.Background()

	s := domain.Session{
		UserID:              userID,
		Username:            "seed-" + userID,
		BedTime:             bedTime.UTC().Truncate(time.Microsecond),
		EveningRatingStatus: domain.RatingMissing,
		State:               domain.SessionOpen,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, username, bed_time, evening_rating_status, state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.UserID, s.Username, s.BedTime, s.EveningRatingStatus.String(), s.State.String(),
	).Scan(&s.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedOpenSession insert: %v", err)
	}

	return s
}

// SeedClosedSession inserts a fully closed session (wake recorded, duration
// computed) with both rating slots still unfilled.
func SeedClosedSession(t *testing.T, pool *pgxpool.Pool, userID string, bedTime, wakeTime time.Time) domain.Session {
	t.Helper()
	ctx := context.Background()

	bed := bedTime.UTC().Truncate(time.Microsecond)
	wake := wakeTime.UTC().Truncate(time.Microsecond)
	minutes := int(wake.Sub(bed).Minutes())

	s := domain.Session{
		UserID:              userID,
		Username:            "seed-" + userID,
		BedTime:             bed,
		WakeTime:            &wake,
		SleepMinutes:        &minutes,
		EveningRatingStatus: domain.RatingMissing,
		State:               domain.SessionClosedAwaitingBoth,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, username, bed_time, wake_time, sleep_minutes, evening_rating_status, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.UserID, s.Username, s.BedTime, s.WakeTime, s.SleepMinutes, s.EveningRatingStatus.String(), s.State.String(),
	).Scan(&s.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedClosedSession insert: %v", err)
	}

	return s
}

// SeedPendingGoodnight inserts a deferred goodnight for the user, backed by a
// fresh checkin row.
func SeedPendingGoodnight(t *testing.T, pool *pgxpool.Pool, userID string, bedTime time.Time) domain.PendingGoodnight {
	t.Helper()
	ctx := context.Background()

	checkin := SeedCheckin(t, pool, userID, domain.CheckinGoodnight, bedTime)

	p := domain.PendingGoodnight{
		UserID:    userID,
		CheckinID: checkin.ID,
		BedTime:   bedTime.UTC().Truncate(time.Microsecond),
		RawText:   checkin.RawText,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO pending_goodnights (user_id, checkin_id, bed_time, raw_text, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.UserID, p.CheckinID, p.BedTime, p.RawText, p.Note, p.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPendingGoodnight insert: %v", err)
	}

	return p
}
