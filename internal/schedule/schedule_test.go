package schedule_test

import (
	"testing"
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/schedule"
)

func tokyoPrefs() *domain.EmailPreferences {
	return &domain.EmailPreferences{
		UserID:              "u1",
		WeeklyDigestEnabled: true,
		PreferredDay:        2, // Wednesday
		PreferredHour:       22,
		Timezone:            "Asia/Tokyo",
		NoActivityPolicy:    domain.PolicySkip,
	}
}

func TestShouldSendNowMatchesLocalWindow(t *testing.T) {
	// 2025-09-10T13:00Z is Wednesday 22:00 JST
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	if !schedule.ShouldSendNow(tokyoPrefs(), now, true) {
		t.Fatal("expected send window to match Wed 22:00 JST")
	}

	// One hour earlier is Wed 21:00 JST
	if schedule.ShouldSendNow(tokyoPrefs(), now.Add(-time.Hour), true) {
		t.Fatal("expected no match at Wed 21:00 JST")
	}

	// Same hour next day
	if schedule.ShouldSendNow(tokyoPrefs(), now.Add(24*time.Hour), true) {
		t.Fatal("expected no match on Thursday")
	}
}

func TestShouldSendNowDisabled(t *testing.T) {
	prefs := tokyoPrefs()
	prefs.WeeklyDigestEnabled = false
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	if schedule.ShouldSendNow(prefs, now, true) {
		t.Fatal("disabled preference must never match")
	}
}

func TestShouldSendNowSkipPolicyWithoutActivity(t *testing.T) {
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	if schedule.ShouldSendNow(tokyoPrefs(), now, false) {
		t.Fatal("skip policy with no activity must not send")
	}

	prefs := tokyoPrefs()
	prefs.NoActivityPolicy = domain.PolicyBrief
	if !schedule.ShouldSendNow(prefs, now, false) {
		t.Fatal("brief policy should still send without activity")
	}
}

func TestShouldSendNowInvalidTimezoneFallsBackToUTC(t *testing.T) {
	prefs := &domain.EmailPreferences{
		WeeklyDigestEnabled: true,
		PreferredDay:        2, // Wednesday
		PreferredHour:       13,
		Timezone:            "Not/AZone",
		NoActivityPolicy:    domain.PolicyBrief,
	}
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC) // Wed 13:00 UTC
	if !schedule.ShouldSendNow(prefs, now, true) {
		t.Fatal("invalid timezone should be treated as UTC")
	}
}

func TestWeekStartOnEachWeekday(t *testing.T) {
	// Monday 2025-09-08
	monday := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 7; offset++ {
		day := monday.AddDate(0, 0, offset).Add(15 * time.Hour)
		got := schedule.WeekStart(day)
		if !got.Equal(monday) {
			t.Fatalf("day+%d: expected week start %v, got %v", offset, monday, got)
		}
	}
}

func TestBoundariesAreSevenDayHalfOpen(t *testing.T) {
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	b := schedule.Boundaries(now, "Asia/Tokyo")

	if !b.PrevWeekEnd.Equal(b.CurrentWeekStart) {
		t.Fatalf("previous week must end where current starts: %v vs %v", b.PrevWeekEnd, b.CurrentWeekStart)
	}
	if got := b.PrevWeekEnd.Sub(b.PrevWeekStart); got != 7*24*time.Hour {
		t.Fatalf("expected 168h previous week, got %s", got)
	}
	if !b.PrevWeekStart.Before(now) || !now.Before(b.CurrentWeekEnd) {
		t.Fatal("now must fall inside the current week")
	}
}

func TestBoundariesAcrossDSTTransition(t *testing.T) {
	// US DST starts Sunday 2025-03-09; the week Mon 03-03 .. Mon 03-10
	// is 167 real hours in America/New_York but still 7 local days.
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	b := schedule.Boundaries(now, "America/New_York")

	loc, _ := time.LoadLocation("America/New_York")
	start := b.PrevWeekStart.In(loc)
	end := b.PrevWeekEnd.In(loc)

	if start.Weekday() != time.Monday || end.Weekday() != time.Monday {
		t.Fatalf("local week must run Monday to Monday, got %s to %s", start.Weekday(), end.Weekday())
	}
	if start.Hour() != 0 || end.Hour() != 0 {
		t.Fatal("local week bounds must be midnight")
	}
	if got := end.Sub(start); got != 167*time.Hour {
		t.Fatalf("spring-forward week should span 167h, got %s", got)
	}
}

func TestWeekStartDateIsUTCMidnight(t *testing.T) {
	now := time.Date(2025, 9, 10, 13, 0, 0, 0, time.UTC)
	ws := schedule.WeekStartDate(now, "Asia/Tokyo")

	if ws.Location() != time.UTC {
		t.Fatal("week start date must be UTC")
	}
	if ws.Hour() != 0 || ws.Minute() != 0 {
		t.Fatal("week start date must be midnight")
	}
	// Previous completed week relative to Wed 2025-09-10 JST starts Mon 2025-09-01
	want := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	if !ws.Equal(want) {
		t.Fatalf("expected %v, got %v", want, ws)
	}
}
