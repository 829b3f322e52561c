// Package timeres resolves ambiguous clock-time overrides into absolute UTC
// instants relative to the configured local timezone and the current session
// context. Both entry points are pure functions of their inputs.
package timeres

import (
	"math"
	"time"

	"github.com/dormouse-bot/dormouse/internal/parse"
)

// ResolveBedtime interprets a bedtime override around now: every clock
// reading of the token is tried on today and yesterday (local zone) and the
// candidate closest to now wins. A winner still more than 12 hours in the
// future is shifted back one day. This lets a user proactively log an
// upcoming bedtime ("it's 9pm, logging (11pm)") while defaulting ambiguous
// tokens to the most recent plausible occurrence.
// Returns false on a malformed token; callers prompt the user to retry.
func ResolveBedtime(token string, now time.Time, loc *time.Location) (time.Time, bool) {
	tok, ok := parse.ParseTimeToken(token)
	if !ok {
		return time.Time{}, false
	}

	local := now.In(loc)

	var candidates []time.Time
	for _, ct := range tok.Interpretations() {
		today := time.Date(local.Year(), local.Month(), local.Day(), ct.Hour, ct.Minute, 0, 0, loc)
		candidates = append(candidates, today, today.AddDate(0, 0, -1))
	}

	best := candidates[0]
	bestScore := absDuration(best.Sub(local))
	for _, c := range candidates[1:] {
		if score := absDuration(c.Sub(local)); score < bestScore {
			best = c
			bestScore = score
		}
	}

	if best.After(local) && best.Sub(local) > 12*time.Hour {
		best = best.AddDate(0, 0, -1)
	}
	return best.UTC(), true
}

// ResolveWake interprets a wake override as the next occurrence after the
// bedtime: each clock reading is placed on the bedtime's local day, pushed
// forward a day if not strictly after it, and the reading with the smallest
// positive offset wins. A wake time always follows its bedtime.
func ResolveWake(token string, bedUTC time.Time, loc *time.Location) (time.Time, bool) {
	tok, ok := parse.ParseTimeToken(token)
	if !ok {
		return time.Time{}, false
	}

	bedLocal := bedUTC.In(loc)

	var best time.Time
	bestDelta := time.Duration(math.MaxInt64)
	for _, ct := range tok.Interpretations() {
		wake := time.Date(bedLocal.Year(), bedLocal.Month(), bedLocal.Day(), ct.Hour, ct.Minute, 0, 0, loc)
		if !wake.After(bedLocal) {
			wake = wake.AddDate(0, 0, 1)
		}
		if delta := wake.Sub(bedLocal); delta < bestDelta {
			best = wake
			bestDelta = delta
		}
	}

	return best.UTC(), true
}

// PreviousEveningReading places the token's PM reading on the day before the
// stored bedtime's local day. It backs out one documented misinterpretation:
// an ambiguous token read as this morning when the user meant the previous
// evening. The caller decides whether the resulting duration is acceptable.
func PreviousEveningReading(tok parse.TimeToken, bedUTC time.Time, loc *time.Location) time.Time {
	hour := tok.RawHour
	if hour != 12 {
		hour += 12
	}
	bedLocal := bedUTC.In(loc)
	t := time.Date(bedLocal.Year(), bedLocal.Month(), bedLocal.Day(), hour, tok.Minute, 0, 0, loc)
	return t.AddDate(0, 0, -1).UTC()
}

// MinutesBetween is the difference b-a in whole minutes, rounded half away
// from zero. MinutesBetween(a, a) == 0 and
// MinutesBetween(a, b) == -MinutesBetween(b, a).
func MinutesBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Minutes()))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
