/*
Package period provides the payroll calendar: civil dates, month bounds,
and inclusive day-range arithmetic.

PURPOSE:
  A payroll cycle is identified by a (year, month) pair. This package
  derives the cycle's calendar bounds from the proleptic Gregorian
  calendar and computes how many days of a sick-leave range fall inside
  a cycle. Everything here is pure computation with no storage access.

KEY CONCEPTS:
  - Date:      A civil date (year/month/day), day granularity, UTC.
  - DateRange: A closed interval [Start, End] of dates.
  - MonthBounds: (first day, last day, day count) for a cycle,
    leap-year aware.
  - OverlapDays: Inclusive intersection length of two ranges.

SEE ALSO:
  - payroll/engine.go: Consumes MonthBounds and OverlapDays for the
    salary computation.
*/
package period

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil date at day granularity
// =============================================================================

// Date is a civil date. The zero value is the zero time.
type Date struct {
	Time time.Time
}

// NewDate constructs a Date in UTC at midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic and properties
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) Year() int           { return d.Time.Year() }
func (d Date) Month() time.Month   { return d.Time.Month() }
func (d Date) Day() int            { return d.Time.Day() }
func (d Date) IsZero() bool        { return d.Time.IsZero() }
func (d Date) String() string      { return d.normalize().Format("2006-01-02") }

// Max returns the later of two dates.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier of two dates.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// =============================================================================
// DATE RANGE - Closed interval [Start, End]
// =============================================================================

// DateRange is a closed date interval. Start must not be after End for
// a range to be valid; Days and OverlapDays assume valid ranges.
type DateRange struct {
	Start Date
	End   Date
}

// Valid reports whether Start <= End.
func (r DateRange) Valid() bool {
	return !r.Start.After(r.End)
}

// Days returns the inclusive day count of the range.
func (r DateRange) Days() int {
	return int(r.End.normalize().Sub(r.Start.normalize()).Hours()/24) + 1
}

// Contains reports whether the date lies within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// OverlapDays returns the inclusive-day length of the intersection of
// two closed ranges, 0 when they are disjoint.
func OverlapDays(a, b DateRange) int {
	start := Max(a.Start, b.Start)
	end := Min(a.End, b.End)
	if start.After(end) {
		return 0
	}
	return DateRange{Start: start, End: end}.Days()
}

// =============================================================================
// MONTH BOUNDS - Calendar bounds of a payroll cycle
// =============================================================================

// ErrInvalidPeriod is returned when a (year, month) pair does not name a
// calendar month.
var ErrInvalidPeriod = fmt.Errorf("invalid period: month must be in [1,12]")

// MonthBounds returns the closed range covering a (year, month) cycle and
// its day count. Day counts follow the proleptic Gregorian calendar, so
// leap-year February yields 29.
func MonthBounds(year, month int) (DateRange, int, error) {
	if month < 1 || month > 12 {
		return DateRange{}, 0, fmt.Errorf("%w: got %d", ErrInvalidPeriod, month)
	}
	first := NewDate(year, time.Month(month), 1)
	// Day 0 of the next month normalizes to this month's last day.
	last := NewDate(year, time.Month(month)+1, 0)
	r := DateRange{Start: first, End: last}
	return r, last.Day(), nil
}
