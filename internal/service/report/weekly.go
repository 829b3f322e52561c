package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dormouse-bot/dormouse/internal/domain"
)

// Weekly folds the closed sessions of the past seven local days into one
// summary. The window ends at the local start of today (exclusive) and opens
// seven days earlier. Returns nil when no session with a positive duration
// closed in the window.
func (s *Service) Weekly(ctx context.Context, now time.Time) (*domain.WeeklySummary, error) {
	local := now.In(s.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	start := end.AddDate(0, 0, -7)

	rows, err := s.repo.ListClosedBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list closed sessions: %w", err)
	}

	summary := foldWeekly(rows, start, end)
	if summary == nil {
		return nil, nil
	}
	return summary, nil
}

// WeeklyIfDue generates the summary text once per local calendar day; the
// dedupe marker survives restarts. The second return reports whether a
// summary is due now.
func (s *Service) WeeklyIfDue(ctx context.Context, now time.Time) (string, bool, error) {
	local := now.In(s.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	last, err := s.repo.LastSummaryDate(ctx)
	if err != nil {
		return "", false, fmt.Errorf("get last summary date: %w", err)
	}
	if last != nil && !last.Before(today) {
		return "", false, nil
	}

	summary, err := s.Weekly(ctx, now)
	if err != nil {
		return "", false, err
	}
	if err := s.repo.SetLastSummaryDate(ctx, today); err != nil {
		return "", false, fmt.Errorf("set last summary date: %w", err)
	}

	text := FormatWeekly(summary)
	s.log.InfoContext(ctx, "weekly summary generated",
		slog.Time("for_date", today),
		slog.Bool("empty", summary == nil),
	)

	return text, true, nil
}

// foldWeekly aggregates the window's rows. Rows without a positive duration
// are skipped for the duration stats but still count toward contributors.
func foldWeekly(rows []domain.ClosedSessionRow, from, to time.Time) *domain.WeeklySummary {
	valid := rows[:0:0]
	for _, r := range rows {
		if r.SleepMinutes != nil && *r.SleepMinutes > 0 {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	summary := &domain.WeeklySummary{
		From:           from,
		To:             to,
		TotalSessions:  len(valid),
		Longest:        domain.SleepExtreme{Minutes: *valid[0].SleepMinutes, Username: valid[0].Username},
		Shortest:       domain.SleepExtreme{Minutes: *valid[0].SleepMinutes, Username: valid[0].Username},
		SessionsByUser: make(map[string]int),
	}

	total := 0
	ratingTotal := 0
	seen := make(map[string]bool)
	for _, r := range valid {
		minutes := *r.SleepMinutes
		total += minutes
		if minutes > summary.Longest.Minutes {
			summary.Longest = domain.SleepExtreme{Minutes: minutes, Username: r.Username}
		}
		if minutes < summary.Shortest.Minutes {
			summary.Shortest = domain.SleepExtreme{Minutes: minutes, Username: r.Username}
		}
		if r.EveningRating != nil {
			ratingTotal += *r.EveningRating
			summary.RatedCount++
		}
		summary.SessionsByUser[r.Username]++
		if !seen[r.UserID] {
			seen[r.UserID] = true
			summary.ContributorIDs = append(summary.ContributorIDs, r.UserID)
		}
	}

	summary.AverageMinutes = int(float64(total)/float64(len(valid)) + 0.5)
	if summary.RatedCount > 0 {
		summary.AverageRating = float64(ratingTotal) / float64(summary.RatedCount)
	}
	sort.Strings(summary.ContributorIDs)

	return summary
}

// FormatWeekly renders the summary as the user-facing text. A nil summary
// yields the empty-week message.
func FormatWeekly(s *domain.WeeklySummary) string {
	if s == nil {
		return "📊 **Weekly Sleep Summary**\n\nNo completed sleep sessions this week."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Weekly Sleep Summary** (%s - %s)\n\n",
		s.From.Format("Jan 2"), s.To.AddDate(0, 0, -1).Format("Jan 2"))
	fmt.Fprintf(&b, "**Total Sessions:** %d\n", s.TotalSessions)
	fmt.Fprintf(&b, "**Average Sleep:** %.1f hours\n\n", float64(s.AverageMinutes)/60)
	fmt.Fprintf(&b, "**Longest Sleep:** %s (%s)\n", formatHours(s.Longest.Minutes), s.Longest.Username)
	fmt.Fprintf(&b, "**Shortest Sleep:** %s (%s)\n", formatHours(s.Shortest.Minutes), s.Shortest.Username)

	if s.RatedCount > 0 {
		fmt.Fprintf(&b, "\n**Average Energy Rating:** %.1f/10 (%d sessions rated)", s.AverageRating, s.RatedCount)
	}
	if len(s.ContributorIDs) > 1 {
		mentions := make([]string, len(s.ContributorIDs))
		for i, id := range s.ContributorIDs {
			mentions[i] = "<@" + id + ">"
		}
		fmt.Fprintf(&b, "\n\n**Contributors:** %s", strings.Join(mentions, " "))
	}

	return b.String()
}

func formatHours(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
