package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

var exportHeader = []string{
	"user_id", "username", "bed_ts_utc", "wake_ts_utc", "sleep_minutes",
	"evening_rating", "evening_rating_status", "morning_rating", "note", "morning_note",
}

// ExportCSV streams closed sessions matching the filter as CSV, oldest
// bedtime first. Returns the number of data rows written; a header is
// written even when zero match.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter domain.ExportFilter) (int, error) {
	rows, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(exportRecord(r)); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush export: %w", err)
	}

	s.log.InfoContext(ctx, "export generated", slog.Int("rows", len(rows)))

	return len(rows), nil
}

func exportRecord(r domain.ClosedSessionRow) []string {
	return []string{
		r.UserID,
		r.Username,
		r.BedTime.UTC().Format(time.RFC3339),
		optTime(r.WakeTime),
		optInt(r.SleepMinutes),
		optInt(r.EveningRating),
		r.EveningRatingStatus.String(),
		optInt(r.MorningRating),
		optString(r.Note),
		optString(r.MorningNote),
	}
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
