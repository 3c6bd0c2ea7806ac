/*
Package leave is the booking core of the leave calendar.

PURPOSE:
  Decides whether a proposed leave booking is admissible, performs the
  mutation against an injected store, and mirrors every mutation into an
  append-only history log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category:     domestic / international, each with a max day count
  - Booking:      a leave request spanning [Date, EndDate]
  - Draft:        fields the caller supplies at creation
  - Updates:      partial edit of the mutable fields
  - BookingData:  snapshot of booking fields stored in history entries
  - HistoryEntry: one audit record per create/update/delete

DAY COUNTING:
  Booking.DaysCovered() is the only day-counting rule in the system. The
  max-duration check and every report use it, so they always agree.

SEE ALSO:
  - validation.go: admission checks
  - ledger.go:     booking CRUD + history emission
  - history.go:    history ledger
  - service.go:    validate-then-write orchestration
*/
package leave

import (
	"time"

	"github.com/warp/leave-calendar/calendar"
)

// =============================================================================
// CATEGORY - Closed set of leave kinds
// =============================================================================

type Category string

const (
	CategoryDomestic      Category = "domestic"
	CategoryInternational Category = "international"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryDomestic, CategoryInternational}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryDomestic || c == CategoryInternational
}

// MaxDays is the longest single booking allowed for the category.
func (c Category) MaxDays() int {
	switch c {
	case CategoryDomestic:
		return 7
	case CategoryInternational:
		return 9
	default:
		return 0
	}
}

// Label is the Thai display name.
func (c Category) Label() string {
	switch c {
	case CategoryDomestic:
		return "ในประเทศ"
	case CategoryInternational:
		return "นอกประเทศ"
	default:
		return string(c)
	}
}

// =============================================================================
// BOOKING
// =============================================================================

type Booking struct {
	ID        string         `json:"id"`
	Date      calendar.Date  `json:"date"`
	EndDate   *calendar.Date `json:"endDate,omitempty"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	Category  Category       `json:"category"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// Last is the final day covered: EndDate, or Date for single-day bookings.
func (b Booking) Last() calendar.Date {
	if b.EndDate == nil || b.EndDate.IsZero() {
		return b.Date
	}
	return *b.EndDate
}

// Span is the inclusive range of days the booking covers.
func (b Booking) Span() calendar.Range {
	return calendar.Range{Start: b.Date, End: b.Last()}
}

// DaysCovered counts the days in Span.
func (b Booking) DaysCovered() int {
	return b.Span().Count()
}

// Covers reports whether day falls within Span.
func (b Booking) Covers(day calendar.Date) bool {
	return b.Span().Contains(day)
}

// IsMultiDay is true when the booking has an end date after its start.
func (b Booking) IsMultiDay() bool {
	return b.Last().After(b.Date)
}

// Draft is what a caller supplies to create a booking.
type Draft struct {
	Date     calendar.Date
	EndDate  *calendar.Date
	UserID   string
	UserName string
	Category Category
	Reason   string
}

// Updates is a partial edit. Nil fields are left unchanged.
type Updates struct {
	Date     *calendar.Date
	EndDate  *calendar.Date
	Category *Category
	Reason   *string
}

// apply merges u into a copy of b.
func (u Updates) apply(b Booking) Booking {
	if u.Date != nil {
		b.Date = *u.Date
	}
	if u.EndDate != nil {
		end := *u.EndDate
		b.EndDate = &end
	}
	if u.Category != nil {
		b.Category = *u.Category
	}
	if u.Reason != nil {
		b.Reason = *u.Reason
	}
	return b
}

// =============================================================================
// HISTORY
// =============================================================================

type HistoryAction string

const (
	ActionCreate HistoryAction = "create"
	ActionUpdate HistoryAction = "update"
	ActionDelete HistoryAction = "delete"
)

// BookingData is a detached snapshot of booking fields. It holds copies,
// never references into live records.
type BookingData struct {
	Date      *calendar.Date `json:"date,omitempty"`
	EndDate   *calendar.Date `json:"endDate,omitempty"`
	Category  Category       `json:"category,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// HistoryEntry is an immutable audit record.
type HistoryEntry struct {
	ID          string        `json:"id"`
	Action      HistoryAction `json:"action"`
	BookingID   string        `json:"bookingId"`
	UserID      string        `json:"userId"`
	UserName    string        `json:"userName"`
	Timestamp   time.Time     `json:"timestamp"`
	OldData     *BookingData  `json:"oldData,omitempty"`
	NewData     *BookingData  `json:"newData,omitempty"`
	BookingData *BookingData  `json:"bookingData,omitempty"`
}

func copyDate(d *calendar.Date) *calendar.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// createSnapshot: date, endDate, category, reason.
func createSnapshot(b Booking) *BookingData {
	date := b.Date
	return &BookingData{
		Date:     &date,
		EndDate:  copyDate(b.EndDate),
		Category: b.Category,
		Reason:   b.Reason,
	}
}

// editSnapshot: the mutable fields plus updatedAt.
func editSnapshot(b Booking) *BookingData {
	s := createSnapshot(b)
	s.UpdatedAt = copyTime(b.UpdatedAt)
	return s
}

// deleteSnapshot: everything except identity.
func deleteSnapshot(b Booking) *BookingData {
	s := editSnapshot(b)
	created := b.CreatedAt
	s.CreatedAt = &created
	return s
}
