// Package history implements the destructive commands over the check-in log:
// reset of the latest entry, multi-step undo of resets, and the admin wipe.
// Every reset pushes an undo entry capturing exactly the state its inverse
// needs; every undo consumes exactly one entry, most recent first.
package history

import (
	"context"
	"log/slog"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/pkg/userlock"
)

type checkinRepo interface {
	GetLatestByUser(ctx context.Context, userID string) (domain.Checkin, error)
	Create(ctx context.Context, c domain.Checkin) (domain.Checkin, error)
	CreateWithID(ctx context.Context, c domain.Checkin) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int, error)
}

type sessionRepo interface {
	ListOpenByUser(ctx context.Context, userID string) ([]domain.Session, error)
	GetLatestByUser(ctx context.Context, userID string) (domain.Session, error)
	Create(ctx context.Context, s domain.Session) (domain.Session, error)
	Update(ctx context.Context, s domain.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int, error)
}

type pendingRepo interface {
	DeleteAll(ctx context.Context) (int, error)
}

type undoRepo interface {
	Push(ctx context.Context, e domain.UndoEntry) (domain.UndoEntry, error)
	Peek(ctx context.Context, userID string) (domain.UndoEntry, error)
	Count(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int, error)
}

type summaryRepo interface {
	ClearLastSummaryDate(ctx context.Context) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements reset, undo, and wipe operations.
type Service struct {
	checkins checkinRepo
	sessions sessionRepo
	pendings pendingRepo
	undos    undoRepo
	summary  summaryRepo
	tx       txManager
	log      *slog.Logger

	adminUserID string
	locks       *userlock.Keyed
}

// NewService creates a history service. adminUserID gates WipeAll; an empty
// value disables it entirely. locks must be the same instance the check-in
// service uses, so resets and undos serialize with concurrent check-ins.
func NewService(
	log *slog.Logger,
	checkins checkinRepo,
	sessions sessionRepo,
	pendings pendingRepo,
	undos undoRepo,
	summary summaryRepo,
	tx txManager,
	locks *userlock.Keyed,
	adminUserID string,
) *Service {
	return &Service{
		checkins:    checkins,
		sessions:    sessions,
		pendings:    pendings,
		undos:       undos,
		summary:     summary,
		tx:          tx,
		log:         log.With("service", "history"),
		adminUserID: adminUserID,
		locks:       locks,
	}
}

// Outcome tells the caller which reply applies. The gateway maps these to
// user-facing texts.
type Outcome string

const (
	OutcomeDone           Outcome = "DONE"
	OutcomeNothingToReset Outcome = "NOTHING_TO_RESET"
	OutcomeNothingToUndo  Outcome = "NOTHING_TO_UNDO"
)

// ResetResult reports what a reset removed.
type ResetResult struct {
	Outcome Outcome
	RawText string // original text of the removed check-in
}

// UndoResult reports what an undo restored.
type UndoResult struct {
	Outcome Outcome
	RawText string // original text of the restored check-in
	HasMore bool   // more entries remain on the stack
}

// WipeResult reports per-table row counts removed by WipeAll.
type WipeResult struct {
	Checkins int
	Sessions int
	Pendings int
	Undos    int
}
