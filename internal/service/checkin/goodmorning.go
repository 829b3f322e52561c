package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
	"github.com/dormouse-bot/dormouse/internal/parse"
	"github.com/dormouse-bot/dormouse/internal/timeres"
)

// Accepted implied-duration band when a past time override has to pick among
// several open sessions, and the ideal the band is scored against.
const (
	minPlausibleSleep   = 4 * time.Hour
	maxPlausibleSleep   = 12 * time.Hour
	idealSleep          = 8 * time.Hour
	maxRepairedDuration = 16 * time.Hour
)

// OnGoodmorning closes the user's open session: resolves the wake time,
// computes the duration (attempting the one documented bedtime repair when it
// comes out negative), attaches inline morning rating/note, and deletes any
// other open sessions so exactly one survives.
func (s *Service) OnGoodmorning(ctx context.Context, in CheckinInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	s.locks.Lock(in.UserID)
	defer s.locks.Unlock(in.UserID)

	var res Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		open, err := s.sessions.ListOpenByUser(txCtx, in.UserID)
		if err != nil {
			return fmt.Errorf("list open sessions: %w", err)
		}

		if len(open) == 0 {
			latest, err := s.sessions.GetLatestByUser(txCtx, in.UserID)
			switch {
			case err == nil && latest.State.Closed():
				res = Result{Prompt: PromptConsecutiveGoodmorning}
			case err == nil || errors.Is(err, domain.ErrNotFound):
				res = Result{Prompt: PromptNoOpenSession}
			default:
				return fmt.Errorf("get latest session: %w", err)
			}
			return nil
		}

		target := open[len(open)-1]
		if len(open) > 1 && in.TimeToken != nil {
			if picked, ok := pickByImpliedDuration(open, *in.TimeToken, in.Now, s.loc); ok {
				target = picked
			}
		}

		wake := in.Now
		if in.TimeToken != nil {
			resolved, ok := timeres.ResolveWake(*in.TimeToken, target.BedTime, s.loc)
			if !ok {
				return fmt.Errorf("wake token %q: %w", *in.TimeToken, domain.ErrBadTimeToken)
			}
			wake = resolved
		}

		minutes := timeres.MinutesBetween(target.BedTime, wake)
		if minutes < 0 {
			if repaired, ok := s.repairBedtime(txCtx, in.UserID, target.BedTime, wake); ok {
				target.BedTime = repaired
				minutes = timeres.MinutesBetween(repaired, wake)
			}
		}
		if minutes < 0 {
			res.DurationAnomaly = true
		}

		target.WakeTime = &wake
		target.SleepMinutes = &minutes
		if in.Rating != nil {
			target.MorningRating = in.Rating
		}
		if in.Note != nil {
			target.MorningNote = in.Note
		}
		target.Recompute()

		if err := s.sessions.Update(txCtx, target); err != nil {
			return fmt.Errorf("close session: %w", err)
		}

		if _, err := s.checkins.Create(txCtx, domain.Checkin{
			UserID:    in.UserID,
			Username:  in.Username,
			Kind:      domain.CheckinGoodmorning,
			Timestamp: wake,
			RawText:   in.RawText,
		}); err != nil {
			return fmt.Errorf("record checkin: %w", err)
		}

		// Only the closed session survives a goodmorning.
		for _, other := range open {
			if other.ID == target.ID {
				continue
			}
			if err := s.sessions.Delete(txCtx, other.ID); err != nil {
				return fmt.Errorf("delete superseded session: %w", err)
			}
		}
		if _, err := s.pendings.DeleteByUser(txCtx, in.UserID); err != nil {
			return fmt.Errorf("discard pending goodnight: %w", err)
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

	if res.Session != nil {
		s.log.InfoContext(ctx, "goodmorning handled",
			slog.String("user_id", in.UserID),
			slog.Int64("session_id", res.Session.ID),
			slog.Int("sleep_minutes", *res.Session.SleepMinutes),
			slog.Bool("duration_anomaly", res.DurationAnomaly),
		)
	}

	return res, nil
}

// pickByImpliedDuration refines target selection when several sessions are
// open and the wake override resolves to the past: among sessions whose
// implied duration is plausible, the one closest to eight hours wins, the
// earliest-created on a tie. Reports false when no session qualifies, which
// keeps the most-recently-created default.
func pickByImpliedDuration(open []domain.Session, token string, now time.Time, loc *time.Location) (domain.Session, bool) {
	var (
		best     domain.Session
		bestDist time.Duration
		found    bool
	)
	for _, sess := range open {
		wake, ok := timeres.ResolveWake(token, sess.BedTime, loc)
		if !ok {
			return domain.Session{}, false
		}
		if !wake.Before(now) {
			continue
		}
		dur := wake.Sub(sess.BedTime)
		if dur < minPlausibleSleep || dur > maxPlausibleSleep {
			continue
		}
		dist := dur - idealSleep
		if dist < 0 {
			dist = -dist
		}
		// open is ordered oldest first, so strict < keeps the earliest on ties.
		if !found || dist < bestDist {
			best, bestDist, found = sess, dist, true
		}
	}
	return best, found
}

// repairBedtime backs out the one documented bedtime misinterpretation: the
// goodnight carried an ambiguous token that was read as the morning of the
// same day. It re-parses the original goodnight text and, if applicable,
// retries the PM-of-the-previous-day reading. The repair is accepted only
// when it yields a duration in (0, 16h].
func (s *Service) repairBedtime(ctx context.Context, userID string, bed, wake time.Time) (time.Time, bool) {
	if bed.Before(wake) {
		return time.Time{}, false
	}

	// The session's originating goodnight is the latest one stamped at or
	// before its bedtime. A newer parked goodnight must not be consulted.
	gn, err := s.checkins.GetLatestByUserKindBefore(ctx, userID, domain.CheckinGoodnight, bed)
	if err != nil {
		return time.Time{}, false
	}

	intent := parse.Parse(gn.RawText)
	if intent.TimeToken == nil {
		return time.Time{}, false
	}
	tok, ok := parse.ParseTimeToken(*intent.TimeToken)
	if !ok || !tok.Ambiguous() {
		return time.Time{}, false
	}

	repaired := timeres.PreviousEveningReading(tok, bed, s.loc)
	minutes := timeres.MinutesBetween(repaired, wake)
	if minutes <= 0 || time.Duration(minutes)*time.Minute > maxRepairedDuration {
		return time.Time{}, false
	}

	return repaired, true
}
