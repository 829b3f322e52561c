package domain

import "time"

// PendingGoodnight is a GN checkin recorded while another session was still
// open. It is deliberately not promoted to a Session until the prior session
// is resolved or the grace period expires. At most one exists per user; a new
// pending GN replaces an older one.
type PendingGoodnight struct {
	UserID    string
	CheckinID int64
	BedTime   time.Time // UTC
	RawText   string
	Note      *string
	CreatedAt time.Time // UTC
}
