package domain

import "time"

// SessionState is the stored lifecycle state of a sleep session.
// It is recomputed via ComputeSessionState on every mutation so invariants can
// be checked without re-deriving them from column nullability.
type SessionState string

const (
	SessionOpen                   SessionState = "OPEN"
	SessionClosedAwaitingBoth     SessionState = "CLOSED_AWAITING_BOTH"
	SessionClosedAwaitingEvening  SessionState = "CLOSED_AWAITING_EVENING"
	SessionClosedAwaitingMorning  SessionState = "CLOSED_AWAITING_MORNING"
	SessionRated                  SessionState = "RATED"
)

func (s SessionState) String() string { return string(s) }

func (s SessionState) IsValid() bool {
	switch s {
	case SessionOpen, SessionClosedAwaitingBoth, SessionClosedAwaitingEvening,
		SessionClosedAwaitingMorning, SessionRated:
		return true
	}
	return false
}

// Closed reports whether the session has a recorded wake-up.
func (s SessionState) Closed() bool { return s != SessionOpen }

// RatingStatus tracks the evening rating lifecycle. A user who starts a new
// night without rating the previous one forfeits it (OMITTED).
type RatingStatus string

const (
	RatingMissing  RatingStatus = "MISSING"
	RatingRecorded RatingStatus = "RECORDED"
	RatingOmitted  RatingStatus = "OMITTED"
)

func (r RatingStatus) String() string { return string(r) }

func (r RatingStatus) IsValid() bool {
	switch r {
	case RatingMissing, RatingRecorded, RatingOmitted:
		return true
	}
	return false
}

// Session is one tracked sleep interval for a user.
type Session struct {
	ID                  int64
	UserID              string
	Username            string
	BedTime             time.Time  // UTC
	WakeTime            *time.Time // nil while open
	SleepMinutes        *int       // nil while open
	EveningRating       *int       // 1–10
	EveningRatingStatus RatingStatus
	MorningRating       *int // 1–10
	State               SessionState
	Note                *string // free text at bedtime
	MorningNote         *string // free text at wake
}

// Open reports whether the session is still waiting for a wake-up.
func (s *Session) Open() bool { return s.State == SessionOpen }

// NeedsEveningRating reports whether the evening rating slot is still fillable.
func (s *Session) NeedsEveningRating() bool {
	return s.EveningRatingStatus == RatingMissing
}

// NeedsMorningRating reports whether the morning rating slot is still empty on
// a closed session.
func (s *Session) NeedsMorningRating() bool {
	return s.State.Closed() && s.MorningRating == nil
}

// ComputeSessionState derives the stored state tag from the session's fields.
func ComputeSessionState(closed bool, eveningStatus RatingStatus, morningRating *int) SessionState {
	if !closed {
		return SessionOpen
	}
	needsEvening := eveningStatus == RatingMissing
	needsMorning := morningRating == nil
	switch {
	case needsEvening && needsMorning:
		return SessionClosedAwaitingBoth
	case needsEvening:
		return SessionClosedAwaitingEvening
	case needsMorning:
		return SessionClosedAwaitingMorning
	default:
		return SessionRated
	}
}

// Recompute refreshes the stored state tag after a mutation.
func (s *Session) Recompute() {
	closed := s.State.Closed() || s.WakeTime != nil
	s.State = ComputeSessionState(closed, s.EveningRatingStatus, s.MorningRating)
}
