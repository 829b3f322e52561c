package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dormouse-bot/dormouse/internal/adapter/postgres/report"
	"github.com/dormouse-bot/dormouse/internal/adapter/postgres/testhelper"
	"github.com/dormouse-bot/dormouse/internal/domain"
)

func newRepo(t *testing.T) (*report.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return report.New(pool), pool
}

func TestRepo_ListClosedBetween(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	userID := testhelper.UniqueUserID()

	// Anchor the window far in the past so concurrent tests cannot leak in.
	from := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	inside := testhelper.SeedClosedSession(t, pool, userID, from.Add(20*time.Hour), from.Add(28*time.Hour))
	// Wake before the window.
	testhelper.SeedClosedSession(t, pool, userID, from.Add(-30*time.Hour), from.Add(-22*time.Hour))
	// Wake at the exclusive upper bound.
	testhelper.SeedClosedSession(t, pool, userID, to.Add(-8*time.Hour), to)
	// Open session never shows up.
	testhelper.SeedOpenSession(t, pool, userID, from.Add(48*time.Hour))

	rows, err := repo.ListClosedBetween(ctx, from, to)
	if err != nil {
		t.Fatalf("ListClosedBetween: unexpected error: %v", err)
	}

	var matched int
	for _, row := range rows {
		if row.UserID != userID {
			continue
		}
		matched++
		if row.WakeTime == nil || !row.WakeTime.Equal(*inside.WakeTime) {
			t.Errorf("WakeTime mismatch: got %v, want %v", row.WakeTime, inside.WakeTime)
		}
	}
	if matched != 1 {
		t.Errorf("matched rows: got %d, want 1", matched)
	}
}

func TestRepo_ListForExport_UserFilter(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	userA := testhelper.UniqueUserID()
	userB := testhelper.UniqueUserID()

	base := time.Date(2021, 3, 10, 22, 0, 0, 0, time.UTC)
	testhelper.SeedClosedSession(t, pool, userA, base, base.Add(8*time.Hour))
	testhelper.SeedOpenSession(t, pool, userA, base.Add(24*time.Hour))
	testhelper.SeedClosedSession(t, pool, userB, base, base.Add(7*time.Hour))

	rows, err := repo.ListForExport(ctx, domain.ExportFilter{UserID: userA})
	if err != nil {
		t.Fatalf("ListForExport: unexpected error: %v", err)
	}

	// Only the closed session is exported; the open one is skipped.
	if len(rows) != 1 {
		t.Fatalf("row count: got %d, want 1", len(rows))
	}
	if rows[0].UserID != userA {
		t.Errorf("unexpected user in filtered export: %s", rows[0].UserID)
	}
	if rows[0].WakeTime == nil || rows[0].SleepMinutes == nil {
		t.Error("exported session should carry wake fields")
	}
}

func TestRepo_ListForExport_TimeRange(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	userID := testhelper.UniqueUserID()

	base := time.Date(2022, 9, 1, 22, 0, 0, 0, time.UTC)
	testhelper.SeedClosedSession(t, pool, userID, base, base.Add(8*time.Hour))
	testhelper.SeedClosedSession(t, pool, userID, base.Add(5*24*time.Hour), base.Add(5*24*time.Hour+8*time.Hour))

	rows, err := repo.ListForExport(ctx, domain.ExportFilter{
		UserID: userID,
		From:   base.Add(-time.Hour),
		To:     base.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ListForExport: unexpected error: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("row count: got %d, want 1", len(rows))
	}
	if !rows[0].BedTime.Equal(base) {
		t.Errorf("BedTime mismatch: got %s, want %s", rows[0].BedTime, base)
	}
}

func TestRepo_SummaryDate_RoundTrip(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if err := repo.SetLastSummaryDate(ctx, date); err != nil {
		t.Fatalf("SetLastSummaryDate: unexpected error: %v", err)
	}

	got, err := repo.LastSummaryDate(ctx)
	if err != nil {
		t.Fatalf("LastSummaryDate: unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a stored date")
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 11 {
		t.Errorf("date mismatch: got %s", got)
	}
}
