package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/timeres"
)

// OnGoodnight handles a bedtime check-in. When another session is still open
// the goodnight is parked as a pending record instead of opening a second
// session; otherwise a pending record is promoted or a fresh session opened.
func (s *Service) OnGoodnight(ctx context.Context, in CheckinInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	bedTime := in.Now
	if in.TimeToken != nil {
		resolved, ok := timeres.ResolveBedtime(*in.TimeToken, in.Now, s.loc)
		if !ok {
			return Result{}, fmt.Errorf("bedtime token %q: %w", *in.TimeToken, domain.ErrBadTimeToken)
		}
		bedTime = resolved
	}

	s.locks.Lock(in.UserID)
	defer s.locks.Unlock(in.UserID)

	var res Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// A user starting a new night without rating the previous one
		// forfeits that rating.
		if err := s.omitStaleEveningRating(txCtx, in.UserID); err != nil {
			return err
		}

		recorded, err := s.checkins.Create(txCtx, domain.Checkin{
			UserID:    in.UserID,
			Username:  in.Username,
			Kind:      domain.CheckinGoodnight,
			Timestamp: bedTime,
			RawText:   in.RawText,
		})
		if err != nil {
			return fmt.Errorf("record checkin: %w", err)
		}

		open, err := s.sessions.ListOpenByUser(txCtx, in.UserID)
		if err != nil {
			return fmt.Errorf("list open sessions: %w", err)
		}

		if len(open) > 0 {
			// Park the goodnight instead of opening a second session.
			err := s.pendings.Upsert(txCtx, domain.PendingGoodnight{
				UserID:    in.UserID,
				CheckinID: recorded.ID,
				BedTime:   bedTime,
				RawText:   in.RawText,
				Note:      in.Note,
				CreatedAt: in.Now,
			})
			if err != nil {
				return fmt.Errorf("park pending goodnight: %w", err)
			}
			res = Result{Prompt: PromptCloseOpenFirst}
		} else {
			sess, err := s.openSession(txCtx, in, bedTime)
			if err != nil {
				return err
			}
			res.Session = &sess
			if in.Rating == nil {
				res.Prompt = PromptAskEvening
			} else {
				res.Prompt = PromptNone
			}
		}

		// A fresh forward action invalidates pending undos.
		if _, err := s.undos.ClearByUser(txCtx, in.UserID); err != nil {
			return fmt.Errorf("clear undo history: %w", err)
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.InfoContext(ctx, "goodnight handled",
		slog.String("user_id", in.UserID),
		slog.String("prompt", string(res.Prompt)),
		slog.Time("bed_time", bedTime),
	)

	return res, nil
}

// omitStaleEveningRating marks the latest closed session still waiting for an
// evening rating as OMITTED. An open session keeps its slot fillable.
func (s *Service) omitStaleEveningRating(ctx context.Context, userID string) error {
	prev, err := s.sessions.GetLatestNeedingEvening(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find session needing evening rating: %w", err)
	}
	if !prev.State.Closed() {
		return nil
	}

	prev.EveningRatingStatus = domain.RatingOmitted
	prev.Recompute()
	if err := s.sessions.Update(ctx, prev); err != nil {
		return fmt.Errorf("omit previous evening rating: %w", err)
	}
	return nil
}

// openSession promotes the user's pending goodnight if one exists, keeping
// its stored bedtime and note; otherwise it opens a fresh session at bedTime.
// An inline rating is attached before the insert.
func (s *Service) openSession(ctx context.Context, in CheckinInput, bedTime time.Time) (domain.Session, error) {
	sess := domain.Session{
		UserID:              in.UserID,
		Username:            in.Username,
		BedTime:             bedTime,
		Note:                in.Note,
		EveningRatingStatus: domain.RatingMissing,
		State:               domain.SessionOpen,
	}

	p, err := s.pendings.GetByUser(ctx, in.UserID)
	switch {
	case err == nil:
		sess.BedTime = p.BedTime
		sess.Note = p.Note
		if _, err := s.pendings.DeleteByUser(ctx, in.UserID); err != nil {
			return domain.Session{}, fmt.Errorf("consume pending goodnight: %w", err)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Session{}, fmt.Errorf("get pending goodnight: %w", err)
	}

	if in.Rating != nil {
		sess.EveningRating = in.Rating
		sess.EveningRatingStatus = domain.RatingRecorded
	}

	created, err := s.sessions.Create(ctx, sess)
	if err != nil {
		return domain.Session{}, fmt.Errorf("open session: %w", err)
	}

	return created, nil
}
