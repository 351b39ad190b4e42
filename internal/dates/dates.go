// Package dates normalizes the heterogeneous date strings found in stored
// rows and resolves named statistics periods to UTC bounds.
//
// Calendar-day boundaries (today, yesterday, month, year) follow the bot's
// home timezone, Europe/Kyiv; everything else is plain UTC.
package dates

import (
	"strings"
	"time"
)

// Sentinel written into the bootstrap row of a fresh ledger table.
const Initial = "initial"

var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
}

var kyiv = loadKyiv()

func loadKyiv() *time.Location {
	loc, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		// Older tzdata ships the previous spelling.
		if loc, err = time.LoadLocation("Europe/Kiev"); err != nil {
			return time.FixedZone("EET", 2*60*60)
		}
	}
	return loc
}

// Kyiv returns the fixed home zone used for calendar-day boundaries.
func Kyiv() *time.Location { return kyiv }

// Parse converts a stored date cell to a UTC instant. The bootstrap
// sentinel, empty strings and unparseable values report ok=false; callers
// skip such rows instead of failing the scan.
func Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || s == Initial {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Naive values are assumed UTC.
		if t.Location() == time.UTC {
			return t, true
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// ParseDay is Parse truncated to a calendar date, used for subscription due
// dates where the time of day is meaningless.
func ParseDay(raw string) (time.Time, bool) {
	t, ok := Parse(raw)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// FormatDay renders a date the way due-date cells store it (DD.MM.YYYY).
func FormatDay(t time.Time) string {
	return t.Format("02.01.2006")
}

// Period is a named or explicit time window. Named tokens are resolved lazily
// against the Kyiv calendar; explicit ranges are inclusive on both ends.
type Period struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Named returns a period resolved from one of the statistics tokens:
// today, yesterday, 7days, 14days, month, year. Unknown tokens behave
// like "today".
func Named(name string) Period { return Period{Name: name} }

// Range returns an explicit inclusive period.
func Range(start, end time.Time) Period { return Period{Start: start, End: end} }

// Bounds resolves the period to UTC [start, end] at the given instant.
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	if p.Name == "" {
		return p.Start, p.End
	}
	local := now.In(kyiv)
	utcNow := now.UTC()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, kyiv)

	switch p.Name {
	case "yesterday":
		start := midnight.AddDate(0, 0, -1)
		return start.UTC(), midnight.Add(-time.Nanosecond).UTC()
	case "7days":
		return utcNow.AddDate(0, 0, -7), utcNow
	case "14days":
		return utcNow.AddDate(0, 0, -14), utcNow
	case "month":
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, kyiv)
		return start.UTC(), utcNow
	case "year":
		start := time.Date(local.Year(), 1, 1, 0, 0, 0, 0, kyiv)
		return start.UTC(), utcNow
	default: // "today" and unknown tokens
		return midnight.UTC(), utcNow
	}
}

// Contains reports whether the UTC instant t falls inside the period
// resolved at now.
func (p Period) Contains(t, now time.Time) bool {
	start, end := p.Bounds(now)
	return !t.Before(start) && !t.After(end)
}

// Days returns the inclusive period length in days, at least 1, for average
// calculations. Both endpoint days count: a range from June 1 to late
// June 10 is ten days.
func (p Period) Days(now time.Time) int {
	start, end := p.Bounds(now)
	d := int(end.Sub(start).Hours()/24) + 1
	if d < 1 {
		return 1
	}
	return d
}

// NextChargeDate advances a subscription due date to the same day next
// month, clamped to the last valid day of the target month
// (Jan 31 -> Feb 29 -> Mar 29).
func NextChargeDate(current time.Time) time.Time {
	year, month := current.Year(), current.Month()
	if month == time.December {
		year, month = year+1, time.January
	} else {
		month++
	}
	day := current.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
