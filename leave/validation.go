package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-calendar/calendar"
)

// =============================================================================
// ADMISSION RULES
// =============================================================================

const (
	// DailyCapacity is how many bookings may cover a single day.
	DailyCapacity = 2
	// MonthlyQuota is how many bookings a user may start in one month.
	MonthlyQuota = 1
)

// Proposal is a booking under consideration. A zero End means single-day.
// ExcludeID names the booking being edited so it is not compared with itself.
type Proposal struct {
	UserID    string
	Start     calendar.Date
	End       calendar.Date
	Category  Category
	ExcludeID string
}

// Last is End, or Start for a single-day proposal.
func (p Proposal) Last() calendar.Date {
	if p.End.IsZero() {
		return p.Start
	}
	return p.End
}

// ProposalFor builds the proposal an existing booking represents.
func ProposalFor(b Booking) Proposal {
	return Proposal{
		UserID:    b.UserID,
		Start:     b.Date,
		End:       b.Last(),
		Category:  b.Category,
		ExcludeID: b.ID,
	}
}

// Result is the {valid, error} shape returned to clients.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Check turns a validation outcome into a Result. Client-fixable errors
// become an invalid Result; anything else is returned as an error.
func Check(err error) (Result, error) {
	if err == nil {
		return Result{Valid: true}, nil
	}
	if IsClientError(err) {
		return Result{Valid: false, Error: err.Error()}, nil
	}
	return Result{}, err
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator evaluates proposals against the current ledger. It holds no state
// between calls; every check reads the store afresh.
type Validator struct {
	store BookingStore
	clock calendar.Clock
	loc   *time.Location
}

// NewValidator builds a Validator. A nil clock uses the wall clock and a nil
// location uses Asia/Bangkok.
func NewValidator(store BookingStore, clock calendar.Clock, loc *time.Location) *Validator {
	if clock == nil {
		clock = calendar.SystemClock
	}
	if loc == nil {
		loc = calendar.Bangkok()
	}
	return &Validator{store: store, clock: clock, loc: loc}
}

// on returns a copy of v reading from store (used inside transactions).
func (v *Validator) on(store BookingStore) *Validator {
	c := *v
	c.store = store
	return &c
}

// ValidateBooking runs the admission checks in order and returns the first
// violation as a *ValidationError. Order: category and range sanity, max
// duration, per-day capacity, monthly quota.
func (v *Validator) ValidateBooking(ctx context.Context, p Proposal) error {
	if !p.Category.Valid() {
		return &ValidationError{
			Rule:    RuleCategory,
			Message: fmt.Sprintf("ประเภทการลาไม่ถูกต้อง: %q", string(p.Category)),
		}
	}
	if p.Start.IsZero() {
		return &ValidationError{Rule: RuleRange, Message: "กรุณาระบุวันที่เริ่มลา"}
	}
	end := p.Last()
	if end.Before(p.Start) {
		return &ValidationError{
			Rule:    RuleRange,
			Message: fmt.Sprintf("วันที่สิ้นสุด %s อยู่ก่อนวันที่เริ่มลา %s", end, p.Start),
			Date:    end,
		}
	}

	days := calendar.DaysInRange(p.Start, end)

	if err := checkMaxDays(p.Category, len(days)); err != nil {
		return err
	}
	if err := v.checkCapacity(ctx, days, p.ExcludeID); err != nil {
		return err
	}
	return v.checkMonthlyQuota(ctx, p)
}

func checkMaxDays(c Category, days int) error {
	limit := c.MaxDays()
	if days <= limit {
		return nil
	}
	return &ValidationError{
		Rule:    RuleMaxDays,
		Message: fmt.Sprintf("ลาประเภท%sสามารถลาสูงสุด %d วัน (คุณลาทั้งหมด %d วัน)", c.Label(), limit, days),
		Limit:   limit,
		Actual:  days,
	}
}

// checkCapacity fails on the first day, in order, that is already full.
func (v *Validator) checkCapacity(ctx context.Context, days []calendar.Date, excludeID string) error {
	for _, day := range days {
		covering, err := v.store.BookingsCovering(ctx, day)
		if err != nil {
			return persistErr("bookings covering "+day.String(), err)
		}
		n := countExcluding(covering, excludeID, nil)
		if n >= DailyCapacity {
			return &ValidationError{
				Rule:    RuleCapacity,
				Message: fmt.Sprintf("วันที่ %s วันนี้มีการจองครบ %d คนแล้ว", day, DailyCapacity),
				Limit:   DailyCapacity,
				Actual:  n,
				Date:    day,
			}
		}
	}
	return nil
}

// checkMonthlyQuota counts the user's bookings that start in the same month.
func (v *Validator) checkMonthlyQuota(ctx context.Context, p Proposal) error {
	started, err := v.store.BookingsStartingIn(ctx, p.Start.Year(), p.Start.Month())
	if err != nil {
		return persistErr("bookings starting in "+p.Start.YearMonth(), err)
	}
	n := countExcluding(started, p.ExcludeID, func(b Booking) bool { return b.UserID == p.UserID })
	if n >= MonthlyQuota {
		return &ValidationError{
			Rule:    RuleMonthlyQuota,
			Message: fmt.Sprintf("เดือนนี้คุณได้ขอลาแล้ว (1 เดือนสามารถขอลาได้เพียง %d ครั้ง)", MonthlyQuota),
			Limit:   MonthlyQuota,
			Actual:  n,
		}
	}
	return nil
}

func countExcluding(bookings []Booking, excludeID string, keep func(Booking) bool) int {
	n := 0
	for _, b := range bookings {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if keep != nil && !keep(b) {
			continue
		}
		n++
	}
	return n
}

// =============================================================================
// EDIT WINDOW
// =============================================================================

// Today is the current calendar day in the validator's timezone.
func (v *Validator) Today() calendar.Date {
	return calendar.Today(v.clock, v.loc)
}

// ValidateCanEdit rejects edits and deletes of bookings dated before today.
// Today itself is still editable.
func (v *Validator) ValidateCanEdit(bookingDate calendar.Date) error {
	today := v.Today()
	if bookingDate.Before(today) {
		return &EditWindowError{Date: bookingDate, Today: today}
	}
	return nil
}

// AsValidationError extracts the structured failure, if err is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
