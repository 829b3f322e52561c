package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// OnRating routes a standalone numeric rating. When one session is missing
// both ratings the evening slot fills first; otherwise an outstanding morning
// slot takes priority over an outstanding evening slot on an older session.
func (s *Service) OnRating(ctx context.Context, in RatingInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	s.locks.Lock(in.UserID)
	defer s.locks.Unlock(in.UserID)

	var res Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		morningSess, morningErr := s.sessions.GetLatestNeedingMorning(txCtx, in.UserID)
		if morningErr != nil && !errors.Is(morningErr, domain.ErrNotFound) {
			return fmt.Errorf("find session needing morning rating: %w", morningErr)
		}
		eveningSess, eveningErr := s.sessions.GetLatestNeedingEvening(txCtx, in.UserID)
		if eveningErr != nil && !errors.Is(eveningErr, domain.ErrNotFound) {
			return fmt.Errorf("find session needing evening rating: %w", eveningErr)
		}

		hasMorning := morningErr == nil
		hasEvening := eveningErr == nil

		var target domain.Session
		switch {
		case hasMorning && hasEvening && morningSess.ID == eveningSess.ID:
			// Same session missing both: the earlier-in-time slot fills first.
			target = eveningSess
			target.EveningRating = &in.Rating
			target.EveningRatingStatus = domain.RatingRecorded
		case hasMorning:
			target = morningSess
			target.MorningRating = &in.Rating
		case hasEvening:
			target = eveningSess
			target.EveningRating = &in.Rating
			target.EveningRatingStatus = domain.RatingRecorded
		default:
			res = Result{Prompt: PromptNoRatingTarget}
			return nil
		}

		target.Recompute()
		if err := s.sessions.Update(txCtx, target); err != nil {
			return fmt.Errorf("attach rating: %w", err)
		}

		if _, err := s.checkins.Create(txCtx, domain.Checkin{
			UserID:    in.UserID,
			Username:  in.Username,
			Kind:      domain.CheckinRating,
			Timestamp: in.Now,
			RawText:   in.RawText,
		}); err != nil {
			return fmt.Errorf("record checkin: %w", err)
		}

		if _, err := s.undos.ClearByUser(txCtx, in.UserID); err != nil {
			return fmt.Errorf("clear undo history: %w", err)
		}

		res.Session = &target
		res.Prompt = followupPrompt(target)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.InfoContext(ctx, "rating handled",
		slog.String("user_id", in.UserID),
		slog.Int("rating", in.Rating),
		slog.String("prompt", string(res.Prompt)),
	)

	return res, nil
}
