package domain

import "time"

// CheckinKind is the type of log entry a recognized message produces.
type CheckinKind string

const (
	CheckinGoodnight   CheckinKind = "GN"
	CheckinGoodmorning CheckinKind = "GM"
	CheckinRating      CheckinKind = "RATING"
)

func (k CheckinKind) String() string { return string(k) }

func (k CheckinKind) IsValid() bool {
	switch k {
	case CheckinGoodnight, CheckinGoodmorning, CheckinRating:
		return true
	}
	return false
}

// Checkin is an immutable log entry for one recognized message.
// Rows are deleted only by reset or pending-goodnight cleanup, never updated.
type Checkin struct {
	ID        int64
	UserID    string
	Username  string
	Kind      CheckinKind
	Timestamp time.Time // UTC
	RawText   string
}
