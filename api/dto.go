/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures the LINE Mini-App sends. Field names follow
  the front end's camelCase contract. Responses reuse the domain types
  (leave.Booking, leave.HistoryEntry, report.*, profile.Profile) directly
  since they already carry JSON tags.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Small response wrappers

TYPES:
  Bookings:
    BookingInput, CreateBookingRequest, BookingUpdatesInput,
    UpdateBookingRequest, ValidateBookingRequest, DeleteResponse

  Users:
    RegisterUserRequest, UpdateUserRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Shape checks (presence, date format, lengths) are struct tags checked by
  go-playground/validator in decode(). Business rules (category, duration,
  capacity, quota) stay in the leave package so their messages are the
  domain's own.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	"github.com/warp/leave-calendar/profile"
)

// =============================================================================
// BOOKINGS
// =============================================================================

// BookingInput is the booking object inside POST /api/bookings.
type BookingInput struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	EndDate  string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	UserID   string `json:"userId" validate:"required,max=128"`
	UserName string `json:"userName" validate:"required,max=255"`
	Category string `json:"category" validate:"required"`
	Reason   string `json:"reason,omitempty" validate:"max=1000"`
}

type CreateBookingRequest struct {
	Booking *BookingInput `json:"booking" validate:"required"`
}

func (in BookingInput) draft() leave.Draft {
	d := leave.Draft{
		Date:     calendar.MustParse(in.Date),
		UserID:   in.UserID,
		UserName: in.UserName,
		Category: leave.Category(in.Category),
		Reason:   in.Reason,
	}
	if in.EndDate != "" {
		end := calendar.MustParse(in.EndDate)
		d.EndDate = &end
	}
	return d
}

// BookingUpdatesInput carries only the fields being changed.
type BookingUpdatesInput struct {
	Date     *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate  *string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Category *string `json:"category,omitempty"`
	Reason   *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type UpdateBookingRequest struct {
	BookingID string               `json:"bookingId" validate:"required"`
	Updates   *BookingUpdatesInput `json:"updates" validate:"required"`
}

func (in BookingUpdatesInput) updates() leave.Updates {
	var u leave.Updates
	if in.Date != nil {
		d := calendar.MustParse(*in.Date)
		u.Date = &d
	}
	if in.EndDate != nil {
		d := calendar.MustParse(*in.EndDate)
		u.EndDate = &d
	}
	if in.Category != nil {
		c := leave.Category(*in.Category)
		u.Category = &c
	}
	u.Reason = in.Reason
	return u
}

// ValidateBookingRequest is the body of POST /api/bookings/validate.
type ValidateBookingRequest struct {
	UserID           string `json:"userId" validate:"required"`
	StartDate        string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Category         string `json:"category" validate:"required"`
	ExcludeBookingID string `json:"excludeBookingId,omitempty"`
}

func (in ValidateBookingRequest) proposal() leave.Proposal {
	p := leave.Proposal{
		UserID:    in.UserID,
		Start:     calendar.MustParse(in.StartDate),
		Category:  leave.Category(in.Category),
		ExcludeID: in.ExcludeBookingID,
	}
	if in.EndDate != "" {
		p.End = calendar.MustParse(in.EndDate)
	}
	return p
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

type PurgeResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// =============================================================================
// USERS
// =============================================================================

// RegisterUserRequest is the body of POST /api/users. The form is skipped
// here and validated by the profile package, which owns the Thai messages.
type RegisterUserRequest struct {
	LineUserID  string               `json:"lineUserId" validate:"required"`
	FormData    *profile.Form        `json:"formData" validate:"-"`
	LineProfile *profile.LineProfile `json:"lineProfile,omitempty" validate:"-"`
}

type UpdateUserRequest struct {
	LineUserID string             `json:"lineUserId" validate:"required"`
	FormData   *profile.FormPatch `json:"formData" validate:"-"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
