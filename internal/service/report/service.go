// Package report builds the weekly sleep summary and the CSV export from the
// closed-session read model.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

type reportRepo interface {
	ListClosedBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedSessionRow, error)
	ListForExport(ctx context.Context, filter domain.ExportFilter) ([]domain.ClosedSessionRow, error)
	LastSummaryDate(ctx context.Context) (*time.Time, error)
	SetLastSummaryDate(ctx context.Context, date time.Time) error
}

// Service produces weekly summaries and CSV exports.
type Service struct {
	repo reportRepo
	log  *slog.Logger
	loc  *time.Location
}

// NewService creates a report service. loc aligns summary windows to local
// calendar days.
func NewService(log *slog.Logger, repo reportRepo, loc *time.Location) *Service {
	return &Service{
		repo: repo,
		log:  log.With("service", "report"),
		loc:  loc,
	}
}
