/*
errors.go - Error taxonomy of the booking core

ERROR CATEGORIES:
  1. ValidationError     - proposal breaks a booking rule (user-actionable)
  2. EditWindowError     - edit/delete of a booking whose date has passed
  3. ErrNotFound         - booking id does not exist
  4. PersistenceError    - the store failed; surfaced to callers as opaque

USAGE:
  if errors.Is(err, leave.ErrValidation) {
      // show err.Error() to the user verbatim
  }

Validation and edit-window messages are part of the observable contract and
are shown to users as-is. Persistence errors are logged and replaced with a
generic message at the HTTP boundary.
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/warp/leave-calendar/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("booking validation failed")

	// ErrEditWindowClosed is the parent of *EditWindowError.
	ErrEditWindowClosed = errors.New("booking date has passed")

	// ErrNotFound is returned when a referenced booking does not exist.
	ErrNotFound = errors.New("booking not found")

	// ErrPersistence is the parent of *PersistenceError.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidRange is returned when a booking ends before it starts.
	ErrInvalidRange = calendar.ErrInvalidRange

	// ErrUnknownCategory is returned for a category outside the closed set.
	ErrUnknownCategory = errors.New("unknown leave category")

	// ErrQuotaConflict is returned by stores that enforce the monthly quota
	// with a storage constraint.
	ErrQuotaConflict = errors.New("monthly booking quota reached")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// Rule names the admission check that failed.
type Rule string

const (
	RuleCategory     Rule = "category"
	RuleRange        Rule = "range"
	RuleMaxDays      Rule = "max_days"
	RuleCapacity     Rule = "capacity"
	RuleMonthlyQuota Rule = "monthly_quota"
)

// ValidationError reports the first violated rule. Message is user-facing.
type ValidationError struct {
	Rule    Rule
	Message string
	Limit   int           // max days, capacity or quota
	Actual  int           // requested days or existing count
	Date    calendar.Date // the full day, for capacity failures
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// EditWindowError blocks edits and deletes of past bookings.
type EditWindowError struct {
	Date  calendar.Date
	Today calendar.Date
}

func (e *EditWindowError) Error() string {
	return "ไม่สามารถแก้ไขการจองที่ผ่านวันไปแล้ว"
}

func (e *EditWindowError) Unwrap() error { return ErrEditWindowClosed }

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// Domain errors pass through untouched.
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the caller can fix the error by changing input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEditWindowClosed) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrQuotaConflict)
}

// IsNotFound returns true if the error indicates a missing booking.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
