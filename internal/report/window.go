// Package report turns joined time entries into the flat project/task report,
// the monthly summary bars and the CSV export.
package report

import (
	"fmt"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/store"
)

// DateLayout is the calendar date format accepted in report ranges.
const DateLayout = "2006-01-02"

// Window is an inclusive instant range on entry start times. A zero side is open.
type Window struct {
	From time.Time
	To   time.Time
}

// DateRange converts two calendar dates into the window from startDate 00:00
// through endDate 23:59:59.999 in loc.
func DateRange(startDate, endDate string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout, startDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date %q", core.ErrInvalidRange, startDate)
	}
	end, err := time.ParseInLocation(DateLayout, endDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end date %q", core.ErrInvalidRange, endDate)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: %s is after %s", core.ErrInvalidRange, startDate, endDate)
	}
	return Window{From: start, To: endOfDay(end)}, nil
}

// DayWindow covers the calendar day of t in t's location.
func DayWindow(t time.Time) Window {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return Window{From: start, To: endOfDay(start)}
}

// MonthWindow covers the whole calendar month in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := start.AddDate(0, 1, -1)
	return Window{From: start, To: endOfDay(last)}
}

func endOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), day.Location())
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// CompletedFilter is the gateway query for completed entries starting inside w.
func (w Window) CompletedFilter() store.EntryFilter {
	return store.EntryFilter{From: w.From, To: w.To, CompletedOnly: true}
}

func (w Window) String() string {
	return w.From.Format(time.RFC3339) + ".." + w.To.Format(time.RFC3339)
}
