package schedule

import (
	"fmt"
	"time"
)

// Night shift boundary: a shift is a night shift when it starts at or
// after 22:00 or ends at or before 06:59.
const (
	nightStartHour = 22
	nightEndHour   = 6
)

// Calendar holds the fields derived from a shift's date and window.
// They are computed once at creation time and stored alongside the shift;
// they are never mutated independently of date and window.
type Calendar struct {
	DayOfWeek int // ISO numbering, Monday=1 .. Sunday=7
	ISOWeek   int
	Quarter   int
	Weekend   bool
	Night     bool
}

// DeriveCalendar computes the calendar fields for a shift on the given
// date with the given window.
func DeriveCalendar(date time.Time, window Window) Calendar {
	_, isoWeek := date.ISOWeek()
	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return Calendar{
		DayOfWeek: weekday,
		ISOWeek:   isoWeek,
		Quarter:   (int(date.Month())-1)/3 + 1,
		Weekend:   date.Weekday() == time.Saturday || date.Weekday() == time.Sunday,
		Night:     window.Start.Hour() >= nightStartHour || window.End.Hour() <= nightEndHour,
	}
}

// BuildWindow converts a calendar date plus "15:04" clock strings into the
// shift's half-open window. An end clock at or before the start clock
// rolls over to the next day (overnight shift).
func BuildWindow(date time.Time, startClock, endClock string) (Window, error) {
	start, err := atClock(date, startClock)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := atClock(date, endClock)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end time: %w", err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Window{Start: start, End: end}, nil
}

// DateOnly truncates a timestamp to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func atClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse clock %q: %w", clock, err)
	}
	d := DateOnly(date)
	return d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}
