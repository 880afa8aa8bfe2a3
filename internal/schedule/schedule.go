// Package schedule decides when a user's weekly digest is due and computes
// the activity window for it. All comparisons happen in the user's local
// time; results cross back to UTC only at the boundaries.
package schedule

import (
	"time"

	"github.com/questspace/digest-service/internal/domain"
	"github.com/questspace/digest-service/internal/pkg/logger"
)

// Weeks start on Monday, matching the 0=Monday .. 6=Sunday day convention
// used in preferences.
const weekStartDay = 0

// WeekBoundaries holds the UTC bounds of the previous (completed) and
// current local weeks. All ranges are inclusive-start, exclusive-end.
type WeekBoundaries struct {
	PrevWeekStart    time.Time
	PrevWeekEnd      time.Time
	CurrentWeekStart time.Time
	CurrentWeekEnd   time.Time
}

// Location resolves an IANA timezone name, falling back to UTC for empty or
// unknown names. Bad preference rows degrade to UTC instead of erroring.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("Unknown timezone, falling back to UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

// localWeekday converts Go's Sunday-based weekday to the Monday-based
// convention stored in preferences.
func localWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns local midnight of the most recent occurrence of
// weekStartDay at or before localTime.
func WeekStart(localTime time.Time) time.Time {
	daysBack := (localWeekday(localTime) - weekStartDay + 7) % 7
	d := localTime.AddDate(0, 0, -daysBack)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, localTime.Location())
}

// Boundaries computes the previous and current local week windows for the
// given timezone, expressed in UTC.
func Boundaries(nowUTC time.Time, timezone string) WeekBoundaries {
	loc := Location(timezone)
	local := nowUTC.In(loc)

	currentStart := WeekStart(local)
	prevStart := currentStart.AddDate(0, 0, -7)

	return WeekBoundaries{
		PrevWeekStart:    prevStart.UTC(),
		PrevWeekEnd:      currentStart.UTC(),
		CurrentWeekStart: currentStart.UTC(),
		CurrentWeekEnd:   currentStart.AddDate(0, 0, 7).UTC(),
	}
}

// WeekStartDate returns the local calendar date keying the digest record for
// the previous completed week, normalized to midnight UTC so it compares and
// stores cleanly as a DATE column.
func WeekStartDate(nowUTC time.Time, timezone string) time.Time {
	loc := Location(timezone)
	prevStart := WeekStart(nowUTC.In(loc)).AddDate(0, 0, -7)
	return time.Date(prevStart.Year(), prevStart.Month(), prevStart.Day(), 0, 0, 0, 0, time.UTC)
}

// ShouldSendNow reports whether nowUTC falls inside the user's local send
// window: digest enabled, local weekday and hour both matching the
// preference. hasInsights short-circuits empty weeks under the skip policy;
// pass true when activity is not yet known.
func ShouldSendNow(prefs *domain.EmailPreferences, nowUTC time.Time, hasInsights bool) bool {
	if prefs == nil || !prefs.WeeklyDigestEnabled {
		return false
	}
	if !hasInsights && prefs.NoActivityPolicy == domain.PolicySkip {
		return false
	}

	local := nowUTC.In(Location(prefs.Timezone))
	return localWeekday(local) == prefs.PreferredDay && local.Hour() == prefs.PreferredHour
}
