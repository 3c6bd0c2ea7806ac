/*
store.go - Persistence contract for bookings and their history

PURPOSE:
  Defines the interface between the booking core and the database. The core
  depends only on this contract, never on a query dialect.

KEY INTERFACES:
  BookingStore: CRUD + the range queries validation and reporting need
  HistoryStore: append-only audit log (plus administrative purge)
  Store:        both, as one backend
  TxStore:      Store + WithTx for atomic validate-then-write

ERRORS:
  GetBooking / SaveBooking return ErrNotFound for unknown ids.
  Stores that enforce the monthly quota in storage return ErrQuotaConflict.

IMPLEMENTATIONS:
  - leave/store/memory.go:     in-memory, for tests and dev
  - store/sqlite/sqlite.go:    SQLite via database/sql
  - store/gormstore/gorm.go:   GORM (PostgreSQL or SQLite)
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/leave-calendar/calendar"
)

// BookingStore persists current booking records.
type BookingStore interface {
	InsertBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	SaveBooking(ctx context.Context, b Booking) error
	// DeleteBooking returns false if id did not exist.
	DeleteBooking(ctx context.Context, id string) (bool, error)

	// BookingsCovering returns bookings whose [Date, EndDate] contains day.
	BookingsCovering(ctx context.Context, day calendar.Date) ([]Booking, error)
	// BookingsStartingIn returns bookings whose start Date is in year/month.
	BookingsStartingIn(ctx context.Context, year int, month time.Month) ([]Booking, error)
	BookingsByUser(ctx context.Context, userID string) ([]Booking, error)
	// AllBookings is ordered by Date, then CreatedAt.
	AllBookings(ctx context.Context) ([]Booking, error)
}

// HistoryFilter narrows ListHistory. Zero fields match everything.
type HistoryFilter struct {
	BookingID string
	UserID    string
	Limit     int // <= 0 means unbounded
}

// HistoryStore is append-only outside of PurgeHistory.
type HistoryStore interface {
	AppendHistory(ctx context.Context, e HistoryEntry) error
	// ListHistory returns entries newest first.
	ListHistory(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error)
	// PurgeHistory removes every entry and returns how many were removed.
	PurgeHistory(ctx context.Context) (int, error)
}

// Store is a complete backend.
type Store interface {
	BookingStore
	HistoryStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// inTx runs fn inside a transaction when s supports one, otherwise directly.
func inTx(ctx context.Context, s Store, fn func(Store) error) error {
	if tx, ok := s.(TxStore); ok {
		return persistErr("transaction", tx.WithTx(ctx, fn))
	}
	return fn(s)
}
