package domain

import "time"

// ClosedSessionRow is the read-model row the report queries return.
type ClosedSessionRow struct {
	UserID              string
	Username            string
	BedTime             time.Time
	WakeTime            *time.Time
	SleepMinutes        *int
	EveningRating       *int
	EveningRatingStatus RatingStatus
	MorningRating       *int
	Note                *string
	MorningNote         *string
}

// ExportFilter narrows the export row set. Zero values mean no filtering.
type ExportFilter struct {
	UserID string
	From   time.Time
	To     time.Time
}

// SleepExtreme names the longest or shortest session in a summary window.
type SleepExtreme struct {
	Minutes  int
	Username string
}

// WeeklySummary is the fold over closed sessions in one summary window.
type WeeklySummary struct {
	From           time.Time
	To             time.Time
	TotalSessions  int
	AverageMinutes int
	Longest        SleepExtreme
	Shortest       SleepExtreme
	AverageRating  float64 // 0 when no session was rated
	RatedCount     int
	SessionsByUser map[string]int // by username
	ContributorIDs []string
}
