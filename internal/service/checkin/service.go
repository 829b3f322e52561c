// Package checkin implements the check-in state machine: goodnight and
// goodmorning intents, standalone ratings, and the pending-goodnight sweep.
// Every logical transition runs in one transaction, and all handling for one
// user is serialized through a keyed lock.
package checkin

import (
	"context"
	"log/slog"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/pkg/userlock"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type checkinRepo interface {
	Create(ctx context.Context, c domain.Checkin) (domain.Checkin, error)
	GetByID(ctx context.Context, id int64) (domain.Checkin, error)
	GetLatestByUserKindBefore(ctx context.Context, userID string, kind domain.CheckinKind, cutoff time.Time) (domain.Checkin, error)
}

type sessionRepo interface {
	Create(ctx context.Context, s domain.Session) (domain.Session, error)
	Update(ctx context.Context, s domain.Session) error
	Delete(ctx context.Context, id int64) error
	ListOpenByUser(ctx context.Context, userID string) ([]domain.Session, error)
	GetLatestByUser(ctx context.Context, userID string) (domain.Session, error)
	GetLatestNeedingEvening(ctx context.Context, userID string) (domain.Session, error)
	GetLatestNeedingMorning(ctx context.Context, userID string) (domain.Session, error)
}

type pendingRepo interface {
	GetByUser(ctx context.Context, userID string) (domain.PendingGoodnight, error)
	Upsert(ctx context.Context, p domain.PendingGoodnight) error
	DeleteByUser(ctx context.Context, userID string) (bool, error)
	ListExpired(ctx context.Context, cutoff time.Time) ([]domain.PendingGoodnight, error)
}

type undoRepo interface {
	ClearByUser(ctx context.Context, userID string) (int, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the check-in business logic.
type Service struct {
	checkins checkinRepo
	sessions sessionRepo
	pendings pendingRepo
	undos    undoRepo
	tx       txManager
	log      *slog.Logger
	loc      *time.Location
	grace    time.Duration
	locks    *userlock.Keyed
}

// NewService creates a new check-in service. grace is how long a pending
// goodnight may sit unresolved before the sweep promotes it. locks must be
// the same instance handed to every service that mutates per-user state.
func NewService(
	log *slog.Logger,
	checkins checkinRepo,
	sessions sessionRepo,
	pendings pendingRepo,
	undos undoRepo,
	tx txManager,
	locks *userlock.Keyed,
	loc *time.Location,
	grace time.Duration,
) *Service {
	return &Service{
		checkins: checkins,
		sessions: sessions,
		pendings: pendings,
		undos:    undos,
		tx:       tx,
		log:      log.With("service", "checkin"),
		loc:      loc,
		grace:    grace,
		locks:    locks,
	}
}
