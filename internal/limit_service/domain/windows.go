package domain

import "time"

// WindowKind names one of the rolling spend windows.
type WindowKind string

const (
	WindowDay      WindowKind = "day"
	WindowWeek     WindowKind = "week"
	WindowMonth    WindowKind = "month"
	WindowLifetime WindowKind = "lifetime"
)

// TimeWindow is a half-open [From, To) interval.
type TimeWindow struct {
	Kind WindowKind
	From time.Time
	To   time.Time
}

// lifetimeStart predates any ledger row.
var lifetimeStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// WindowAt returns the calendar window of the given kind containing now, evaluated in now's location.
// Weeks are ISO weeks starting on Monday.
func WindowAt(kind WindowKind, now time.Time) TimeWindow {
	y, m, d := now.Date()
	loc := now.Location()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch kind {
	case WindowDay:
		return TimeWindow{Kind: kind, From: startOfDay, To: startOfDay.AddDate(0, 0, 1)}
	case WindowWeek:
		offset := (int(now.Weekday()) + 6) % 7 // Monday == 0
		from := startOfDay.AddDate(0, 0, -offset)
		return TimeWindow{Kind: kind, From: from, To: from.AddDate(0, 0, 7)}
	case WindowMonth:
		from := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return TimeWindow{Kind: kind, From: from, To: from.AddDate(0, 1, 0)}
	default:
		return TimeWindow{Kind: WindowLifetime, From: lifetimeStart, To: now.Add(time.Nanosecond)}
	}
}
