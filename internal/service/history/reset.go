package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// ResetLast removes the user's most recent check-in and reverses its side
// effects on the session table. The prior state is pushed onto the undo stack
// first, so the whole operation can be replayed in reverse. Repeated resets
// keep stacking; each one is undoable separately.
func (s *Service) ResetLast(ctx context.Context, userID string) (ResetResult, error) {
	if userID == "" {
		return ResetResult{}, domain.NewValidationError("user_id", "required")
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var res ResetResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		last, err := s.checkins.GetLatestByUser(txCtx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				res = ResetResult{Outcome: OutcomeNothingToReset}
				return nil
			}
			return fmt.Errorf("get latest checkin: %w", err)
		}

		entry := domain.UndoEntry{
			UserID:           userID,
			CheckinID:        last.ID,
			CheckinKind:      last.Kind,
			CheckinTimestamp: last.Timestamp,
			CheckinRawText:   last.RawText,
			CheckinUsername:  last.Username,
			Type:             domain.UndoUnknown,
		}

		switch last.Kind {
		case domain.CheckinGoodnight:
			err = s.captureGoodnightReset(txCtx, userID, &entry)
		case domain.CheckinGoodmorning:
			err = s.captureGoodmorningReset(txCtx, userID, &entry)
		case domain.CheckinRating:
			err = s.captureRatingReset(txCtx, userID, &entry)
		}
		if err != nil {
			return err
		}

		if _, err := s.undos.Push(txCtx, entry); err != nil {
			return fmt.Errorf("push undo entry: %w", err)
		}
		if err := s.checkins.Delete(txCtx, last.ID); err != nil {
			return fmt.Errorf("delete checkin: %w", err)
		}

		res = ResetResult{Outcome: OutcomeDone, RawText: last.RawText}
		return nil
	})
	if err != nil {
		return ResetResult{}, err
	}

	if res.Outcome == OutcomeDone {
		s.log.InfoContext(ctx, "reset handled",
			slog.String("user_id", userID),
			slog.String("raw_text", res.RawText),
		)
	}

	return res, nil
}

// captureGoodnightReset deletes the open session the goodnight created,
// snapshotting everything needed to recreate it.
func (s *Service) captureGoodnightReset(ctx context.Context, userID string, entry *domain.UndoEntry) error {
	open, err := s.sessions.ListOpenByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list open sessions: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	target := open[len(open)-1]
	entry.Type = domain.UndoGoodnight
	entry.SessionID = &target.ID
	entry.Snapshot = &domain.UndoSnapshot{Goodnight: &domain.GoodnightSnapshot{
		UserID:              target.UserID,
		Username:            target.Username,
		BedTime:             target.BedTime,
		Note:                target.Note,
		EveningRating:       target.EveningRating,
		EveningRatingStatus: target.EveningRatingStatus,
	}}

	if err := s.sessions.Delete(ctx, target.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// captureGoodmorningReset reopens the session the goodmorning closed,
// snapshotting the closing fields it clears.
func (s *Service) captureGoodmorningReset(ctx context.Context, userID string, entry *domain.UndoEntry) error {
	sess, err := s.sessions.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get latest session: %w", err)
	}
	if !sess.State.Closed() || sess.WakeTime == nil {
		return nil
	}

	entry.Type = domain.UndoGoodmorning
	entry.SessionID = &sess.ID
	entry.Snapshot = &domain.UndoSnapshot{Goodmorning: &domain.GoodmorningSnapshot{
		WakeTime:      *sess.WakeTime,
		SleepMinutes:  *sess.SleepMinutes,
		MorningRating: sess.MorningRating,
		MorningNote:   sess.MorningNote,
	}}

	sess.WakeTime = nil
	sess.SleepMinutes = nil
	sess.MorningRating = nil
	sess.MorningNote = nil
	sess.State = domain.SessionOpen

	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("reopen session: %w", err)
	}
	return nil
}

// captureRatingReset clears the rating the check-in attached. The morning
// slot is checked first, before anything is mutated, because a filled morning
// rating means that was the most recent attachment.
func (s *Service) captureRatingReset(ctx context.Context, userID string, entry *domain.UndoEntry) error {
	sess, err := s.sessions.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get latest session: %w", err)
	}

	switch {
	case sess.MorningRating != nil:
		entry.Type = domain.UndoRatingMorning
		entry.SessionID = &sess.ID
		entry.Snapshot = &domain.UndoSnapshot{Rating: &domain.RatingSnapshot{
			Value: *sess.MorningRating,
		}}
		sess.MorningRating = nil

	case sess.EveningRating != nil:
		status := sess.EveningRatingStatus
		entry.Type = domain.UndoRatingEvening
		entry.SessionID = &sess.ID
		entry.Snapshot = &domain.UndoSnapshot{Rating: &domain.RatingSnapshot{
			Value:         *sess.EveningRating,
			EveningStatus: &status,
		}}
		sess.EveningRating = nil
		sess.EveningRatingStatus = domain.RatingMissing

	default:
		// Nothing to clear; the checkin deletion still happens and the
		// entry stays restore-only.
		return nil
	}

	sess.Recompute()
	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("clear rating: %w", err)
	}
	return nil
}

// WipeAll removes every row from every table in one transaction. Only the
// configured admin may call it; an empty admin id disables the command.
func (s *Service) WipeAll(ctx context.Context, requestedBy string) (WipeResult, error) {
	if s.adminUserID == "" || requestedBy != s.adminUserID {
		return WipeResult{}, fmt.Errorf("wipe all requested by %q: %w", requestedBy, domain.ErrForbidden)
	}

	var res WipeResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if res.Undos, err = s.undos.DeleteAll(txCtx); err != nil {
			return fmt.Errorf("wipe undo entries: %w", err)
		}
		if res.Pendings, err = s.pendings.DeleteAll(txCtx); err != nil {
			return fmt.Errorf("wipe pending goodnights: %w", err)
		}
		if res.Sessions, err = s.sessions.DeleteAll(txCtx); err != nil {
			return fmt.Errorf("wipe sessions: %w", err)
		}
		if res.Checkins, err = s.checkins.DeleteAll(txCtx); err != nil {
			return fmt.Errorf("wipe checkins: %w", err)
		}
		if err := s.summary.ClearLastSummaryDate(txCtx); err != nil {
			return fmt.Errorf("wipe summary state: %w", err)
		}
		return nil
	})
	if err != nil {
		return WipeResult{}, err
	}

	s.log.WarnContext(ctx, "all data wiped",
		slog.String("admin_user_id", requestedBy),
		slog.Int("checkins", res.Checkins),
		slog.Int("sessions", res.Sessions),
	)

	return res, nil
}
