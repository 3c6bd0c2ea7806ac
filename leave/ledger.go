/*
ledger.go - Booking ledger: CRUD over current bookings with audit emission

PURPOSE:
  The Ledger is the only component that writes bookings. It owns identifier
  and timestamp assignment and emits exactly one history entry per
  successful create, update or delete.

NOT A GATEKEEPER:
  The Ledger does not run the admission checks. It is a reusable mutation
  primitive; Service composes it with the Validator. It does reject
  structurally broken input (unknown category, end before start).

HISTORY POLICY:
  HistoryLenient (default): the booking write stands even if the history
  append fails; the failure is logged.
  HistoryStrict: a history failure fails the operation. When the store is
  a TxStore, the booking write and the history append commit together.

SNAPSHOTS:
  create: bookingData = {date, endDate, category, reason}
  update: oldData/newData = {date, endDate, category, reason, updatedAt}
  delete: oldData = {date, endDate, category, reason, createdAt, updatedAt}
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-calendar/calendar"
)

// HistoryPolicy decides what a failed history append does to the mutation.
type HistoryPolicy int

const (
	HistoryLenient HistoryPolicy = iota
	HistoryStrict
)

func (p HistoryPolicy) String() string {
	if p == HistoryStrict {
		return "strict"
	}
	return "lenient"
}

// Options configures the Ledger and Service. Zero values are usable.
type Options struct {
	Clock         calendar.Clock
	Location      *time.Location
	HistoryPolicy HistoryPolicy
	Logger        *log.Logger
	NewID         func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = calendar.SystemClock
	}
	if o.Location == nil {
		o.Location = calendar.Bangkok()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store   Store
	History *History

	clock  calendar.Clock
	policy HistoryPolicy
	logger *log.Logger
	newID  func() string
}

func NewLedger(store Store, opts Options) *Ledger {
	opts = opts.withDefaults()
	return &Ledger{
		Store:   store,
		History: NewHistory(store, opts.Clock),
		clock:   opts.Clock,
		policy:  opts.HistoryPolicy,
		logger:  opts.Logger,
		newID:   opts.NewID,
	}
}

// on returns a Ledger bound to store (a transaction view).
func (l *Ledger) on(store Store) *Ledger {
	c := *l
	c.Store = store
	c.History = l.History.on(store)
	return &c
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC().Truncate(time.Microsecond)
}

// Create assigns ID and CreatedAt, inserts the booking and emits "create".
func (l *Ledger) Create(ctx context.Context, d Draft) (Booking, error) {
	b := Booking{
		Date:     d.Date,
		EndDate:  normalizeEnd(d.EndDate),
		UserID:   d.UserID,
		UserName: d.UserName,
		Category: d.Category,
		Reason:   d.Reason,
	}
	if err := checkShape(b); err != nil {
		return Booking{}, err
	}
	b.ID = l.newID()
	b.CreatedAt = l.now()

	err := l.mutate(ctx, ActionCreate, b.ID, func(s Store) (*HistoryEntry, error) {
		if err := s.InsertBooking(ctx, b); err != nil {
			return nil, persistErr("insert booking", err)
		}
		return &HistoryEntry{
			Action:      ActionCreate,
			BookingID:   b.ID,
			UserID:      b.UserID,
			UserName:    b.UserName,
			BookingData: createSnapshot(b),
		}, nil
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// Update merges u into the booking, stamps UpdatedAt and emits "update".
// Returns ErrNotFound if id does not exist.
func (l *Ledger) Update(ctx context.Context, id string, u Updates) (Booking, error) {
	var updated Booking
	err := l.mutate(ctx, ActionUpdate, id, func(s Store) (*HistoryEntry, error) {
		existing, err := s.GetBooking(ctx, id)
		if err != nil {
			return nil, persistErr("get booking", err)
		}

		next := u.apply(existing)
		next.EndDate = normalizeEnd(next.EndDate)
		if err := checkShape(next); err != nil {
			return nil, err
		}
		stamp := l.now()
		next.UpdatedAt = &stamp

		if err := s.SaveBooking(ctx, next); err != nil {
			return nil, persistErr("save booking", err)
		}
		updated = next
		return &HistoryEntry{
			Action:    ActionUpdate,
			BookingID: existing.ID,
			UserID:    existing.UserID,
			UserName:  existing.UserName,
			OldData:   editSnapshot(existing),
			NewData:   editSnapshot(next),
		}, nil
	})
	if err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// Delete removes the booking and emits "delete" with its last state.
// Returns false if id did not exist.
func (l *Ledger) Delete(ctx context.Context, id string) (bool, error) {
	found := false
	err := l.mutate(ctx, ActionDelete, id, func(s Store) (*HistoryEntry, error) {
		existing, err := s.GetBooking(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, persistErr("get booking", err)
		}
		ok, err := s.DeleteBooking(ctx, id)
		if err != nil {
			return nil, persistErr("delete booking", err)
		}
		if !ok {
			return nil, nil
		}
		found = true
		return &HistoryEntry{
			Action:    ActionDelete,
			BookingID: existing.ID,
			UserID:    existing.UserID,
			UserName:  existing.UserName,
			OldData:   deleteSnapshot(existing),
		}, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// mutate runs write and appends the history entry it returns (nil = nothing
// changed) according to the ledger's HistoryPolicy.
func (l *Ledger) mutate(ctx context.Context, action HistoryAction, id string, write func(Store) (*HistoryEntry, error)) error {
	if l.policy == HistoryStrict {
		return inTx(ctx, l.Store, func(s Store) error {
			entry, err := write(s)
			if err != nil || entry == nil {
				return err
			}
			_, err = l.History.on(s).Append(ctx, *entry)
			return err
		})
	}

	entry, err := write(l.Store)
	if err != nil || entry == nil {
		return err
	}
	if _, err := l.History.Append(ctx, *entry); err != nil {
		l.logger.Printf("[LEDGER] action=%s booking_id=%s history=dropped err=%v", action, id, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) Get(ctx context.Context, id string) (Booking, error) {
	b, err := l.Store.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, persistErr("get booking", err)
	}
	return b, nil
}

// ByDate returns bookings whose span covers day.
func (l *Ledger) ByDate(ctx context.Context, day calendar.Date) ([]Booking, error) {
	bs, err := l.Store.BookingsCovering(ctx, day)
	return bs, persistErr("bookings by date", err)
}

// ByMonth returns bookings that start in the month (start date only).
func (l *Ledger) ByMonth(ctx context.Context, year int, month time.Month) ([]Booking, error) {
	bs, err := l.Store.BookingsStartingIn(ctx, year, month)
	return bs, persistErr("bookings by month", err)
}

func (l *Ledger) ByUser(ctx context.Context, userID string) ([]Booking, error) {
	bs, err := l.Store.BookingsByUser(ctx, userID)
	return bs, persistErr("bookings by user", err)
}

func (l *Ledger) All(ctx context.Context) ([]Booking, error) {
	bs, err := l.Store.AllBookings(ctx)
	return bs, persistErr("all bookings", err)
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeEnd drops a zero end date so single-day bookings have EndDate nil.
func normalizeEnd(end *calendar.Date) *calendar.Date {
	if end == nil || end.IsZero() {
		return nil
	}
	c := *end
	return &c
}

func checkShape(b Booking) error {
	if !b.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(b.Category))
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrInvalidRange)
	}
	if b.Last().Before(b.Date) {
		return fmt.Errorf("%w: %s", ErrInvalidRange, b.Span())
	}
	return nil
}
