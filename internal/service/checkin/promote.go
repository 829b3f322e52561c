package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// PromotePending is the periodic sweep over pending goodnights older than the
// grace period: the stale open session each one was waiting on is considered
// abandoned and deleted, and the pending record becomes a fresh open session
// at its stored bedtime. A pending record whose originating check-in was
// deleted (for example by a reset) is discarded without promoting.
// Returns the number of promoted records.
func (s *Service) PromotePending(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.grace)

	expired, err := s.pendings.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired pending goodnights: %w", err)
	}

	promoted := 0
	for _, p := range expired {
		ok, err := s.promoteOne(ctx, p.UserID, cutoff)
		if err != nil {
			// One bad record must not starve the rest of the sweep.
			s.log.ErrorContext(ctx, "pending promotion failed",
				slog.String("user_id", p.UserID),
				slog.Any("error", err),
			)
			continue
		}
		if ok {
			promoted++
		}
	}

	if promoted > 0 {
		s.log.InfoContext(ctx, "pending goodnights promoted", slog.Int("count", promoted))
	}

	return promoted, nil
}

func (s *Service) promoteOne(ctx context.Context, userID string, cutoff time.Time) (bool, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var promoted bool
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Re-read under the lock: a handler may have consumed or replaced
		// the pending record since the sweep listed it.
		p, err := s.pendings.GetByUser(txCtx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("get pending goodnight: %w", err)
		}
		if p.CreatedAt.After(cutoff) {
			return nil
		}

		origin, err := s.checkins.GetByID(txCtx, p.CheckinID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The goodnight itself was reset away; nothing to promote.
				if _, err := s.pendings.DeleteByUser(txCtx, userID); err != nil {
					return fmt.Errorf("discard orphaned pending goodnight: %w", err)
				}
				return nil
			}
			return fmt.Errorf("get originating checkin: %w", err)
		}

		open, err := s.sessions.ListOpenByUser(txCtx, userID)
		if err != nil {
			return fmt.Errorf("list open sessions: %w", err)
		}
		for _, stale := range open {
			if err := s.sessions.Delete(txCtx, stale.ID); err != nil {
				return fmt.Errorf("delete abandoned session: %w", err)
			}
		}

		if _, err := s.sessions.Create(txCtx, domain.Session{
			UserID:              userID,
			Username:            origin.Username,
			BedTime:             p.BedTime,
			Note:                p.Note,
			EveningRatingStatus: domain.RatingMissing,
			State:               domain.SessionOpen,
		}); err != nil {
			return fmt.Errorf("promote pending goodnight: %w", err)
		}

		if _, err := s.pendings.DeleteByUser(txCtx, userID); err != nil {
			return fmt.Errorf("consume pending goodnight: %w", err)
		}

		promoted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return promoted, nil
}
