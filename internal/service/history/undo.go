package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Undo replays the inverse of the user's most recent reset: the deleted
// check-in row comes back (under its original id when still free) and the
// session mutation is reversed according to the entry's type. Exactly one
// stack entry is consumed; older entries stay available for further undos.
// An empty stack is a normal negative result, not an error.
func (s *Service) Undo(ctx context.Context, userID string) (UndoResult, error) {
	if userID == "" {
		return UndoResult{}, domain.NewValidationError("user_id", "required")
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var res UndoResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := s.undos.Peek(txCtx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				res = UndoResult{Outcome: OutcomeNothingToUndo}
				return nil
			}
			return fmt.Errorf("peek undo stack: %w", err)
		}

		if err := s.restoreCheckin(txCtx, entry); err != nil {
			return err
		}
		if err := s.replayInverse(txCtx, entry); err != nil {
			return err
		}

		if err := s.undos.Delete(txCtx, entry.ID); err != nil {
			return fmt.Errorf("consume undo entry: %w", err)
		}
		remaining, err := s.undos.Count(txCtx, userID)
		if err != nil {
			return fmt.Errorf("count undo entries: %w", err)
		}

		res = UndoResult{
			Outcome: OutcomeDone,
			RawText: entry.CheckinRawText,
			HasMore: remaining > 0,
		}
		return nil
	})
	if err != nil {
		return UndoResult{}, err
	}

	if res.Outcome == OutcomeDone {
		s.log.InfoContext(ctx, "undo handled",
			slog.String("user_id", userID),
			slog.String("raw_text", res.RawText),
			slog.Bool("has_more", res.HasMore),
		)
	}

	return res, nil
}

// restoreCheckin re-inserts the deleted check-in row. The original id is
// preferred so pending records and later entries keep pointing at it; when
// that id has been reassigned the row comes back under a fresh one.
func (s *Service) restoreCheckin(ctx context.Context, entry domain.UndoEntry) error {
	c := domain.Checkin{
		ID:        entry.CheckinID,
		UserID:    entry.UserID,
		Username:  entry.CheckinUsername,
		Kind:      entry.CheckinKind,
		Timestamp: entry.CheckinTimestamp,
		RawText:   entry.CheckinRawText,
	}

	err := s.checkins.CreateWithID(ctx, c)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("restore checkin: %w", err)
	}

	if _, err := s.checkins.Create(ctx, c); err != nil {
		return fmt.Errorf("restore checkin under fresh id: %w", err)
	}
	return nil
}

func (s *Service) replayInverse(ctx context.Context, entry domain.UndoEntry) error {
	switch entry.Type {
	case domain.UndoGoodnight:
		return s.replayGoodnight(ctx, entry)
	case domain.UndoGoodmorning:
		return s.replayGoodmorning(ctx, entry)
	case domain.UndoRatingEvening, domain.UndoRatingMorning:
		return s.replayRating(ctx, entry)
	default:
		// Restore-only entry; the checkin row is already back.
		return nil
	}
}

// replayGoodnight recreates the open session the reset deleted.
func (s *Service) replayGoodnight(ctx context.Context, entry domain.UndoEntry) error {
	if entry.Snapshot == nil || entry.Snapshot.Goodnight == nil {
		return fmt.Errorf("undo entry %d: missing goodnight snapshot", entry.ID)
	}
	snap := entry.Snapshot.Goodnight

	_, err := s.sessions.Create(ctx, domain.Session{
		UserID:              snap.UserID,
		Username:            snap.Username,
		BedTime:             snap.BedTime,
		Note:                snap.Note,
		EveningRating:       snap.EveningRating,
		EveningRatingStatus: snap.EveningRatingStatus,
		State:               domain.SessionOpen,
	})
	if err != nil {
		return fmt.Errorf("recreate session: %w", err)
	}
	return nil
}

// replayGoodmorning re-closes an open session with the snapshotted fields.
// The original session id may be gone when the goodnight was also reset, so
// the current open session is closed instead; with none around there is
// nothing to re-close and the checkin restore alone has to do.
func (s *Service) replayGoodmorning(ctx context.Context, entry domain.UndoEntry) error {
	if entry.Snapshot == nil || entry.Snapshot.Goodmorning == nil {
		return fmt.Errorf("undo entry %d: missing goodmorning snapshot", entry.ID)
	}
	snap := entry.Snapshot.Goodmorning

	open, err := s.sessions.ListOpenByUser(ctx, entry.UserID)
	if err != nil {
		return fmt.Errorf("list open sessions: %w", err)
	}
	if len(open) == 0 {
		s.log.WarnContext(ctx, "goodmorning undo found no open session",
			slog.String("user_id", entry.UserID),
			slog.Int64("undo_entry_id", entry.ID),
		)
		return nil
	}

	target := open[len(open)-1]
	wake := snap.WakeTime
	minutes := snap.SleepMinutes
	target.WakeTime = &wake
	target.SleepMinutes = &minutes
	target.MorningRating = snap.MorningRating
	target.MorningNote = snap.MorningNote
	target.Recompute()

	if err := s.sessions.Update(ctx, target); err != nil {
		return fmt.Errorf("re-close session: %w", err)
	}
	return nil
}

// replayRating puts a cleared rating value back on the session it came from,
// falling back to the user's latest session when the original is gone.
func (s *Service) replayRating(ctx context.Context, entry domain.UndoEntry) error {
	if entry.Snapshot == nil || entry.Snapshot.Rating == nil {
		return fmt.Errorf("undo entry %d: missing rating snapshot", entry.ID)
	}
	snap := entry.Snapshot.Rating

	sess, err := s.sessions.GetLatestByUser(ctx, entry.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "rating undo found no session",
				slog.String("user_id", entry.UserID),
				slog.Int64("undo_entry_id", entry.ID),
			)
			return nil
		}
		return fmt.Errorf("get latest session: %w", err)
	}

	value := snap.Value
	if entry.Type == domain.UndoRatingMorning {
		sess.MorningRating = &value
	} else {
		sess.EveningRating = &value
		sess.EveningRatingStatus = domain.RatingRecorded
		if snap.EveningStatus != nil {
			sess.EveningRatingStatus = *snap.EveningStatus
		}
	}
	sess.Recompute()

	if err := s.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("restore rating: %w", err)
	}
	return nil
}
