// Package parse turns raw check-in text into a structured intent.
// The vocabulary is a small fixed set; anything else is Unknown and callers
// silently ignore it.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// IntentKind classifies a recognized message.
type IntentKind string

const (
	KindRatingOnly  IntentKind = "RATING_ONLY"
	KindGoodnight   IntentKind = "GN"
	KindGoodmorning IntentKind = "GM"
	KindUnknown     IntentKind = "UNKNOWN"
)

// Intent is the structured form of one check-in message.
type Intent struct {
	Kind      IntentKind
	Rating    *int    // 1–10
	TimeToken *string // contents of a trailing (...) override
	Note      *string // contents of a quoted "..." note
}

var goodnightWords = map[string]struct{}{
	"gn": {}, "goodnight": {}, "good night": {}, "gngn": {}, "night": {}, "good nite": {},
}

var goodmorningWords = map[string]struct{}{
	"gm": {}, "goodmorning": {}, "good morning": {}, "morning": {},
}

var (
	ratingOnlyRe   = regexp.MustCompile(`^!\s*([1-9]|10)\s*$`)
	trailRatingRe  = regexp.MustCompile(`!\s*([1-9]|10)\s*$`)
	trailTimeRe    = regexp.MustCompile(`\(\s*([^)]+?)\s*\)\s*$`)
	quotedNoteRe   = regexp.MustCompile(`"([^"]*)"`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	smartQuoteRepl = strings.NewReplacer("“", `"`, "”", `"`)
)

func normalize(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Parse recognizes rating-only messages ("!5"), goodnight/goodmorning
// commands with optional trailing rating ("!8"), time override ("(11pm)") and
// quoted note anywhere after the command. Examples:
//
//	gn (11pm) !8
//	good morning (9:00 am)
//	gn !5 (9pm) "pset grinding"
//
// Extraction order is note, rating, time token; each is optional. Smart
// quotes are normalized first so mobile input works.
func Parse(raw string) Intent {
	text := smartQuoteRepl.Replace(strings.TrimSpace(raw))

	if m := ratingOnlyRe.FindStringSubmatch(text); m != nil {
		r, _ := strconv.Atoi(m[1])
		return Intent{Kind: KindRatingOnly, Rating: &r}
	}

	var note *string
	if loc := quotedNoteRe.FindStringSubmatchIndex(text); loc != nil {
		n := strings.TrimSpace(text[loc[2]:loc[3]])
		note = &n
		text = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	}

	var rating *int
	if loc := trailRatingRe.FindStringSubmatchIndex(text); loc != nil {
		r, _ := strconv.Atoi(text[loc[2]:loc[3]])
		rating = &r
		text = strings.TrimSpace(text[:loc[0]])
	}

	var timeToken *string
	if loc := trailTimeRe.FindStringSubmatchIndex(text); loc != nil {
		tok := strings.TrimSpace(text[loc[2]:loc[3]])
		timeToken = &tok
		text = strings.TrimSpace(text[:loc[0]])
	}

	cmd := normalize(text)
	if _, ok := goodnightWords[cmd]; ok {
		return Intent{Kind: KindGoodnight, Rating: rating, TimeToken: timeToken, Note: note}
	}
	if _, ok := goodmorningWords[cmd]; ok {
		return Intent{Kind: KindGoodmorning, Rating: rating, TimeToken: timeToken, Note: note}
	}
	return Intent{Kind: KindUnknown}
}

// TimeToken is a parsed clock-time override. Suffix is "am", "pm" or empty.
type TimeToken struct {
	RawHour int
	Minute  int
	Suffix  string
}

// Ambiguous reports whether the token has two clock readings (no meridiem and
// a raw hour that fits the 12-hour dial).
func (t TimeToken) Ambiguous() bool {
	return t.Suffix == "" && t.RawHour <= 12
}

var timeTokenRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// ParseTimeToken accepts forms like 9pm, 9 PM, 9:00am, 21:15, 09:30, 9.
// Returns false on anything malformed; callers prompt the user to retry.
func ParseTimeToken(token string) (TimeToken, bool) {
	m := timeTokenRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return TimeToken{}, false
	}

	rawHour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	suffix := strings.ToLower(m[3])

	if minute > 59 {
		return TimeToken{}, false
	}
	if rawHour > 23 {
		return TimeToken{}, false
	}
	if suffix != "" && (rawHour < 1 || rawHour > 12) {
		return TimeToken{}, false
	}

	return TimeToken{RawHour: rawHour, Minute: minute, Suffix: suffix}, true
}

// ClockTime is one 24-hour reading of a token.
type ClockTime struct {
	Hour   int
	Minute int
}

// Interpretations expands a token into its candidate clock times: one for an
// explicit meridiem or a 24-hour hour, two (AM then PM) when ambiguous.
func (t TimeToken) Interpretations() []ClockTime {
	switch t.Suffix {
	case "am":
		h := t.RawHour
		if h == 12 {
			h = 0
		}
		return []ClockTime{{Hour: h, Minute: t.Minute}}
	case "pm":
		h := t.RawHour
		if h != 12 {
			h += 12
		}
		return []ClockTime{{Hour: h, Minute: t.Minute}}
	}

	if t.RawHour > 12 {
		return []ClockTime{{Hour: t.RawHour, Minute: t.Minute}}
	}

	am := t.RawHour
	if am == 12 {
		am = 0
	}
	pm := t.RawHour
	if pm != 12 {
		pm += 12
	}
	return []ClockTime{{Hour: am, Minute: t.Minute}, {Hour: pm, Minute: t.Minute}}
}
