// Package undo implements the undo-stack repository using PostgreSQL.
// Snapshots are stored as JSONB; exactly the variant named by the entry's
// type is populated.
package undo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Repo provides undo-stack persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new undo repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL
// ---------------------------------------------------------------------------

const undoColumns = `id, user_id, undo_type, checkin_id, checkin_kind, checkin_ts,
       checkin_raw_text, checkin_username, session_id, snapshot, created_at`

const pushUndoSQL = `
INSERT INTO undo_entries (user_id, undo_type, checkin_id, checkin_kind, checkin_ts,
                          checkin_raw_text, checkin_username, session_id, snapshot)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`

const peekUndoSQL = `
SELECT ` + undoColumns + `
FROM undo_entries
WHERE user_id = $1
ORDER BY id DESC
LIMIT 1`

const deleteUndoSQL = `DELETE FROM undo_entries WHERE id = $1`

const clearUndoByUserSQL = `DELETE FROM undo_entries WHERE user_id = $1`

const countUndoByUserSQL = `SELECT count(*) FROM undo_entries WHERE user_id = $1`

const deleteAllUndoSQL = `DELETE FROM undo_entries`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Peek returns the most recent undo entry for the user without consuming it.
// Returns domain.ErrNotFound if the stack is empty.
func (r *Repo) Peek(ctx context.Context, userID string) (domain.UndoEntry, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	e, err := scanUndoEntry(querier.QueryRow(ctx, peekUndoSQL, userID))
	if err != nil {
		return domain.UndoEntry{}, postgres.MapError(err, "undo_entry", userID)
	}

	return e, nil
}

// Count returns the user's undo-stack depth.
func (r *Repo) Count(ctx context.Context, userID string) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var count int
	if err := querier.QueryRow(ctx, countUndoByUserSQL, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count undo_entries: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Push appends an entry to the user's undo stack and returns it with the
// generated id and timestamp.
func (r *Repo) Push(ctx context.Context, e domain.UndoEntry) (domain.UndoEntry, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return domain.UndoEntry{}, fmt.Errorf("marshal undo snapshot: %w", err)
	}

	err = querier.QueryRow(ctx, pushUndoSQL,
		e.UserID, e.Type.String(), e.CheckinID, e.CheckinKind.String(),
		e.CheckinTimestamp.UTC().Truncate(time.Microsecond),
		e.CheckinRawText, e.CheckinUsername, e.SessionID, snapshot,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return domain.UndoEntry{}, postgres.MapError(err, "undo_entry", e.UserID)
	}

	return e, nil
}

// Delete consumes an entry after its inverse has been replayed.
// Returns domain.ErrNotFound if the row does not exist.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteUndoSQL, id)
	if err != nil {
		return postgres.MapError(err, "undo_entry", id)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("undo_entry %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ClearByUser drops the user's entire undo stack. Idempotent.
// Returns the number of deleted entries.
func (r *Repo) ClearByUser(ctx context.Context, userID string) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, clearUndoByUserSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("clear undo_entries: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteAll removes every undo entry. Admin wipe only.
func (r *Repo) DeleteAll(ctx context.Context) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteAllUndoSQL)
	if err != nil {
		return 0, fmt.Errorf("delete all undo_entries: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanUndoEntry(row pgx.Row) (domain.UndoEntry, error) {
	var (
		e        domain.UndoEntry
		undoType string
		kind     string
		snapshot []byte
	)
	if err := row.Scan(
		&e.ID, &e.UserID, &undoType, &e.CheckinID, &kind, &e.CheckinTimestamp,
		&e.CheckinRawText, &e.CheckinUsername, &e.SessionID, &snapshot, &e.CreatedAt,
	); err != nil {
		return domain.UndoEntry{}, err
	}

	e.Type = domain.UndoType(undoType)
	e.CheckinKind = domain.CheckinKind(kind)

	var s domain.UndoSnapshot
	if err := json.Unmarshal(snapshot, &s); err != nil {
		return domain.UndoEntry{}, fmt.Errorf("unmarshal undo snapshot: %w", err)
	}
	e.Snapshot = &s

	return e, nil
}
