// Package report implements the read-model queries behind weekly summaries
// and CSV export. Queries are composed with squirrel because the export
// filters are optional.
package report

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dormouse-bot/dormouse/internal/adapter/postgres"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Repo provides reporting queries backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// New creates a new report repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var sessionRowColumns = []string{
	"user_id", "username", "bed_time", "wake_time", "sleep_minutes",
	"evening_rating", "evening_rating_status", "morning_rating", "note", "morning_note",
}

// ---------------------------------------------------------------------------
// Session read model
// ---------------------------------------------------------------------------

// ListClosedBetween returns closed sessions whose wake time falls in
// [from, to), ordered by wake time.
func (r *Repo) ListClosedBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedSessionRow, error) {
	query := r.sb.
		Select(sessionRowColumns...).
		From("sessions").
		Where(sq.NotEq{"wake_time": nil}).
		Where(sq.GtOrEq{"wake_time": from.UTC()}).
		Where(sq.Lt{"wake_time": to.UTC()}).
		OrderBy("wake_time")

	return r.querySessionRows(ctx, query, "list closed sessions")
}

// ListForExport returns closed sessions matching the filter, oldest bedtime
// first. Sessions still waiting for a goodmorning are skipped.
func (r *Repo) ListForExport(ctx context.Context, filter domain.ExportFilter) ([]domain.ClosedSessionRow, error) {
	query := r.sb.
		Select(sessionRowColumns...).
		From("sessions").
		Where(sq.NotEq{"wake_time": nil}).
		OrderBy("bed_time")

	if filter.UserID != "" {
		query = query.Where(sq.Eq{"user_id": filter.UserID})
	}
	if !filter.From.IsZero() {
		query = query.Where(sq.GtOrEq{"bed_time": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		query = query.Where(sq.Lt{"bed_time": filter.To.UTC()})
	}

	return r.querySessionRows(ctx, query, "list sessions for export")
}

func (r *Repo) querySessionRows(ctx context.Context, query sq.SelectBuilder, op string) ([]domain.ClosedSessionRow, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result, err := scanSessionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// ---------------------------------------------------------------------------
// Summary bookkeeping
// ---------------------------------------------------------------------------

const getLastSummaryDateSQL = `SELECT last_summary_date FROM summary_state WHERE id = 1`

const setLastSummaryDateSQL = `UPDATE summary_state SET last_summary_date = $1 WHERE id = 1`

const clearLastSummaryDateSQL = `UPDATE summary_state SET last_summary_date = NULL WHERE id = 1`

// LastSummaryDate returns the calendar date the last weekly summary was
// posted for, or nil if none has been posted yet.
func (r *Repo) LastSummaryDate(ctx context.Context) (*time.Time, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var d *time.Time
	if err := querier.QueryRow(ctx, getLastSummaryDateSQL).Scan(&d); err != nil {
		return nil, fmt.Errorf("get last summary date: %w", err)
	}

	return d, nil
}

// SetLastSummaryDate records the calendar date a weekly summary was posted for.
func (r *Repo) SetLastSummaryDate(ctx context.Context, date time.Time) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := querier.Exec(ctx, setLastSummaryDateSQL, date); err != nil {
		return fmt.Errorf("set last summary date: %w", err)
	}

	return nil
}

// ClearLastSummaryDate forgets the dedupe marker. Admin wipe only.
func (r *Repo) ClearLastSummaryDate(ctx context.Context) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := querier.Exec(ctx, clearLastSummaryDateSQL); err != nil {
		return fmt.Errorf("clear last summary date: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanSessionRows(rows pgx.Rows) ([]domain.ClosedSessionRow, error) {
	var result []domain.ClosedSessionRow
	for rows.Next() {
		var (
			row           domain.ClosedSessionRow
			eveningStatus string
		)
		if err := rows.Scan(
			&row.UserID, &row.Username, &row.BedTime, &row.WakeTime, &row.SleepMinutes,
			&row.EveningRating, &eveningStatus, &row.MorningRating, &row.Note, &row.MorningNote,
		); err != nil {
			return nil, err
		}
		row.EveningRatingStatus = domain.RatingStatus(eveningStatus)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if result == nil {
		result = []domain.ClosedSessionRow{}
	}

	return result, nil
}
