// Package daterange compares calendar date ranges with inclusive bounds.
//
// All values are reduced to a calendar day before comparison. The day is taken
// in the value's own location and re-anchored at midnight UTC, so two dates that
// name the same calendar day always compare equal regardless of zone.
package daterange

import (
	"fmt"
	"time"
)

// Layout is the wire format for date-only values.
const Layout = "2006-01-02"

// Range is a closed interval of calendar days.
type Range struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// New returns the range [start, end] with both bounds reduced to dates.
func New(start, end time.Time) Range {
	return Range{Start: DateOnly(start), End: DateOnly(end)}
}

// DateOnly strips the time of day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Parse reads a YYYY-MM-DD value.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Format renders a date as YYYY-MM-DD.
func Format(t time.Time) string {
	return DateOnly(t).Format(Layout)
}

// Valid reports whether start is strictly before end.
// A single-day window has to be expressed as two consecutive dates.
func (r Range) Valid() bool {
	return DateOnly(r.Start).Before(DateOnly(r.End))
}

// Overlaps reports whether r and other share at least one day.
// [a1,a2] and [b1,b2] overlap iff a1 <= b2 && b1 <= a2.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r, other)
}

// Contains reports whether d falls inside r, bounds included.
func (r Range) Contains(d time.Time) bool {
	day := DateOnly(d)
	return !day.Before(DateOnly(r.Start)) && !day.After(DateOnly(r.End))
}

// Days lists every calendar day of r in order. Empty when r is inverted.
func (r Range) Days() []time.Time {
	start, end := DateOnly(r.Start), DateOnly(r.End)
	if start.After(end) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

const secondsPerDay = 24 * 60 * 60

// Len is the number of calendar days covered by r, zero when r is inverted.
func (r Range) Len() int {
	start, end := DateOnly(r.Start).Unix(), DateOnly(r.End).Unix()
	if start > end {
		return 0
	}
	return int((end-start)/secondsPerDay) + 1
}

func (r Range) String() string {
	return Format(r.Start) + ".." + Format(r.End)
}

// Overlaps is the inclusive overlap test on two ranges.
func Overlaps(a, b Range) bool {
	a1, a2 := DateOnly(a.Start), DateOnly(a.End)
	b1, b2 := DateOnly(b.Start), DateOnly(b.End)
	return !a1.After(b2) && !b1.After(a2)
}
