package calendar

import (
	"errors"
	"time"

	"github.com/jinzhu/now"
)

// ErrInvalidRange is returned when a span ends before it starts.
var ErrInvalidRange = errors.New("invalid range: end before start")

// =============================================================================
// RANGE - Inclusive span of calendar days
// =============================================================================

// Range is the inclusive span [Start, End]. A single-day range has Start == End.
type Range struct {
	Start Date
	End   Date
}

// NewRange builds a span. A zero end means a single day.
func NewRange(start, end Date) (Range, error) {
	if end.IsZero() {
		end = start
	}
	if end.Before(start) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// SingleDay is the range covering only d.
func SingleDay(d Date) Range { return Range{Start: d, End: d} }

// Contains returns true if d is within [Start, End].
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns every day in the span, in order.
func (r Range) Days() []Date {
	return DaysInRange(r.Start, r.End)
}

// Count is the inclusive number of days; 0 for an inverted range.
func (r Range) Count() int {
	return DaysCount(r.Start, r.End)
}

// Overlaps reports whether the two spans share at least one day.
func (r Range) Overlaps(other Range) bool {
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}

func (r Range) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// DaysInRange expands [start, end] into its days. An inverted range yields none.
func DaysInRange(start, end Date) []Date {
	n := DaysCount(start, end)
	if n == 0 {
		return nil
	}
	days := make([]Date, 0, n)
	for current := start; !current.After(end); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// DaysCount is the inclusive day count of [start, end].
func DaysCount(start, end Date) int {
	if end.Before(start) {
		return 0
	}
	return int(end.t.Sub(start.t).Hours()/24) + 1
}

// =============================================================================
// MONTHS
// =============================================================================

// MonthRange spans the first to the last day of the month.
func MonthRange(year int, month time.Month) Range {
	anchor := now.With(time.Date(year, month, 1, 12, 0, 0, 0, time.UTC))
	return Range{
		Start: DateOf(anchor.BeginningOfMonth()),
		End:   DateOf(anchor.EndOfMonth()),
	}
}

// DaysInMonth returns every day of the month.
func DaysInMonth(year int, month time.Month) []Date {
	return MonthRange(year, month).Days()
}
