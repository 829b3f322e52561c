package domain

import "time"

// UndoType selects which inverse procedure reverses a reset operation, and
// which snapshot variant the entry carries.
type UndoType string

const (
	UndoGoodnight     UndoType = "GN"             // re-create the deleted open session
	UndoGoodmorning   UndoType = "GM"             // re-close the reopened session
	UndoRatingEvening UndoType = "RATING_EVENING" // restore the cleared evening rating
	UndoRatingMorning UndoType = "RATING_MORNING" // restore the cleared morning rating
	UndoUnknown       UndoType = "UNKNOWN"        // checkin restore only
)

func (t UndoType) String() string { return string(t) }

func (t UndoType) IsValid() bool {
	switch t {
	case UndoGoodnight, UndoGoodmorning, UndoRatingEvening, UndoRatingMorning, UndoUnknown:
		return true
	}
	return false
}

// GoodnightSnapshot captures the open session a GN reset deleted.
type GoodnightSnapshot struct {
	UserID              string       `json:"user_id"`
	Username            string       `json:"username"`
	BedTime             time.Time    `json:"bed_ts_utc"`
	Note                *string      `json:"note,omitempty"`
	EveningRating       *int         `json:"evening_rating,omitempty"`
	EveningRatingStatus RatingStatus `json:"evening_rating_status"`
}

// GoodmorningSnapshot captures the closing fields a GM reset cleared.
type GoodmorningSnapshot struct {
	WakeTime      time.Time `json:"wake_ts_utc"`
	SleepMinutes  int       `json:"sleep_minutes"`
	MorningRating *int      `json:"morning_rating,omitempty"`
	MorningNote   *string   `json:"morning_note,omitempty"`
}

// RatingSnapshot captures a cleared rating value. For the evening slot the
// prior status is kept so OMITTED round-trips.
type RatingSnapshot struct {
	Value         int           `json:"value"`
	EveningStatus *RatingStatus `json:"evening_status,omitempty"`
}

// UndoSnapshot is a tagged union: exactly the variant named by the entry's
// UndoType is non-nil. This replaces runtime inspection of a loose blob.
type UndoSnapshot struct {
	Goodnight   *GoodnightSnapshot   `json:"goodnight,omitempty"`
	Goodmorning *GoodmorningSnapshot `json:"goodmorning,omitempty"`
	Rating      *RatingSnapshot      `json:"rating,omitempty"`
}

// UndoEntry is one stack item capturing enough state to reverse one reset.
// Entries are consumed most-recent-first, one per undo call.
type UndoEntry struct {
	ID               int64
	UserID           string
	CheckinID        int64
	CheckinKind      CheckinKind
	CheckinTimestamp time.Time // UTC
	CheckinRawText   string
	CheckinUsername  string
	SessionID        *int64
	Snapshot         *UndoSnapshot
	Type             UndoType
	CreatedAt        time.Time // UTC
}
