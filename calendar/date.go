/*
Package calendar provides the date arithmetic shared by validation and reporting.

PURPOSE:
  Leave bookings are expressed in whole calendar days. This package owns the
  civil Date type, "today" in the organization's timezone, inclusive range
  expansion and day counting. Every component that counts days goes through
  here so the admission checks and the reports can never disagree.

KEY CONCEPTS:
  - Date:  a calendar day with no time component ("2024-03-05")
  - Range: an inclusive [Start, End] span of days
  - Clock: injectable source of "now" for edit-window checks

TIMEZONE:
  The organization runs on Asia/Bangkok. Dates themselves are zone-free;
  only Today() needs a location to decide which calendar day "now" is.

SEE ALSO:
  - range.go: Range, DaysInRange, MonthRange
  - leave/validation.go: max-duration and edit-window checks
  - report/engine.go: day-statistics expansion
*/
package calendar

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Layout is the wire and storage format of a Date.
const Layout = "2006-01-02"

// =============================================================================
// DATE - A calendar day, normalized to UTC midnight
// =============================================================================

// Date is a calendar day. The zero value is "no date".
type Date struct {
	t time.Time
}

// NewDate builds a Date; out-of-range values normalize like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Before(other):
		return -1
	case d.After(other):
		return 1
	default:
		return 0
	}
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }

// Time returns UTC midnight of the day.
func (d Date) Time() time.Time { return d.t }

// In returns the start of the day in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// SameMonth reports whether both days share a calendar year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

// YearMonth is the sortable month key, e.g. "2024-03".
func (d Date) YearMonth() string { return d.t.Format("2006-01") }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

// MarshalText encodes the day as YYYY-MM-DD (used by encoding/json).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts YYYY-MM-DD; an empty string yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// TODAY - Clock + timezone
// =============================================================================

// Clock returns the current instant. Tests pin it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Today returns the calendar day that clock's "now" falls on in loc.
func Today(clock Clock, loc *time.Location) Date {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = Bangkok()
	}
	return DateOf(clock().In(loc))
}

const bangkokZone = "Asia/Bangkok"

var (
	bangkokOnce sync.Once
	bangkok     *time.Location
)

// Bangkok returns the Asia/Bangkok location, falling back to a fixed +07:00
// zone when the tz database is unavailable. Thailand has no DST.
func Bangkok() *time.Location {
	bangkokOnce.Do(func() {
		bangkok = LoadLocation(bangkokZone)
	})
	return bangkok
}

// LoadLocation loads name, returning fixed +07:00 for Asia/Bangkok (or UTC for
// anything else) if the tz database does not know it.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = bangkokZone
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == bangkokZone {
		return time.FixedZone("ICT", 7*60*60)
	}
	return time.UTC
}
