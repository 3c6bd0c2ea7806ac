/*
Package profile manages the registration record of each LINE user.

PURPOSE:
  Before booking, a user registers a profile: full name, phone and an
  optional email, plus what the identity platform tells us about them
  (display name, picture). Bookings carry the full name as UserName; the
  booking core never joins back to profiles.

KEY CONCEPTS:
  - Profile:     the stored record, keyed by LINE user id
  - Form:        user-entered fields, validated on register and update
  - FormPatch:   partial update of Form
  - LineProfile: identity-platform data captured at registration

SEE ALSO:
  - store/sqlite, store/gormstore: Store implementations
  - api/handlers.go: /api/users
*/
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/warp/leave-calendar/calendar"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("profile already exists")
	ErrInvalid  = errors.New("invalid profile")
)

// =============================================================================
// TYPES
// =============================================================================

type Profile struct {
	LineUserID    string    `json:"lineUserId"`
	FullName      string    `json:"fullName"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	PictureURL    string    `json:"pictureUrl,omitempty"`
	StatusMessage string    `json:"statusMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Form is what the registration screen submits.
type Form struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"required,phone"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// FormPatch updates only the non-nil fields.
type FormPatch struct {
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// LineProfile is the identity platform's view of the user.
type LineProfile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// Store persists profiles.
type Store interface {
	// GetProfile returns ErrNotFound for unknown ids.
	GetProfile(ctx context.Context, lineUserID string) (Profile, error)
	// InsertProfile returns ErrExists if the id is taken.
	InsertProfile(ctx context.Context, p Profile) error
	// SaveProfile returns ErrNotFound for unknown ids.
	SaveProfile(ctx context.Context, p Profile) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store Store
	clock calendar.Clock
}

func NewService(store Store, clock calendar.Clock) *Service {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &Service{store: store, clock: clock}
}

func (s *Service) Get(ctx context.Context, lineUserID string) (Profile, error) {
	if strings.TrimSpace(lineUserID) == "" {
		return Profile{}, &ValidationError{Fields: map[string]string{"lineUserId": msgLineUserID}}
	}
	return s.store.GetProfile(ctx, lineUserID)
}

// Register validates the form and stores a new profile. line may be nil.
func (s *Service) Register(ctx context.Context, lineUserID string, form Form, line *LineProfile) (Profile, error) {
	lineUserID = strings.TrimSpace(lineUserID)
	if lineUserID == "" {
		return Profile{}, &ValidationError{Fields: map[string]string{"lineUserId": msgLineUserID}}
	}
	form = form.normalized()
	if err := ValidateForm(form); err != nil {
		return Profile{}, err
	}

	now := s.now()
	p := Profile{
		LineUserID: lineUserID,
		FullName:   form.FullName,
		Phone:      form.Phone,
		Email:      form.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if line != nil {
		p.DisplayName = line.DisplayName
		p.PictureURL = line.PictureURL
		p.StatusMessage = line.StatusMessage
	}
	if err := s.store.InsertProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Update merges patch into the stored form and re-validates the result.
func (s *Service) Update(ctx context.Context, lineUserID string, patch FormPatch) (Profile, error) {
	p, err := s.Get(ctx, lineUserID)
	if err != nil {
		return Profile{}, err
	}

	form := Form{FullName: p.FullName, Phone: p.Phone, Email: p.Email}
	if patch.FullName != nil {
		form.FullName = *patch.FullName
	}
	if patch.Phone != nil {
		form.Phone = *patch.Phone
	}
	if patch.Email != nil {
		form.Email = *patch.Email
	}
	form = form.normalized()
	if err := ValidateForm(form); err != nil {
		return Profile{}, err
	}

	p.FullName, p.Phone, p.Email = form.FullName, form.Phone, form.Email
	p.UpdatedAt = s.now()
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// normalized trims names and strips phone separators.
func (f Form) normalized() Form {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Phone = NormalizePhone(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// NormalizePhone removes spaces and dashes.
func NormalizePhone(phone string) string {
	return strings.NewReplacer("-", "", " ", "", "\t", "").Replace(strings.TrimSpace(phone))
}
