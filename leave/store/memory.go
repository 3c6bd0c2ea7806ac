// Package store provides in-memory leave.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data *memoryData
}

func NewMemory() *Memory {
	return &Memory{data: newMemoryData()}
}

func (m *Memory) InsertBooking(ctx context.Context, b leave.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.InsertBooking(ctx, b)
}

func (m *Memory) GetBooking(ctx context.Context, id string) (leave.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetBooking(ctx, id)
}

func (m *Memory) SaveBooking(ctx context.Context, b leave.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SaveBooking(ctx, b)
}

func (m *Memory) DeleteBooking(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteBooking(ctx, id)
}

func (m *Memory) BookingsCovering(ctx context.Context, day calendar.Date) ([]leave.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.BookingsCovering(ctx, day)
}

func (m *Memory) BookingsStartingIn(ctx context.Context, year int, month time.Month) ([]leave.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.BookingsStartingIn(ctx, year, month)
}

func (m *Memory) BookingsByUser(ctx context.Context, userID string) ([]leave.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.BookingsByUser(ctx, userID)
}

func (m *Memory) AllBookings(ctx context.Context) ([]leave.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.AllBookings(ctx)
}

func (m *Memory) AppendHistory(ctx context.Context, e leave.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.AppendHistory(ctx, e)
}

func (m *Memory) ListHistory(ctx context.Context, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListHistory(ctx, f)
}

func (m *Memory) PurgeHistory(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.PurgeHistory(ctx)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions serialize.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.data.clone()

	// The view writes straight into tm.data without taking the lock again.
	if err := fn(tm.data); err != nil {
		tm.data = snapshot
		return err
	}
	return nil
}

// =============================================================================
// UNLOCKED DATA - shared by Memory (under its mutex) and transaction views
// =============================================================================

type memoryData struct {
	bookings map[string]leave.Booking
	history  []leave.HistoryEntry
}

func newMemoryData() *memoryData {
	return &memoryData{bookings: make(map[string]leave.Booking)}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		bookings: make(map[string]leave.Booking, len(d.bookings)),
		history:  append([]leave.HistoryEntry(nil), d.history...),
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	return c
}

func (d *memoryData) InsertBooking(_ context.Context, b leave.Booking) error {
	d.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (d *memoryData) GetBooking(_ context.Context, id string) (leave.Booking, error) {
	b, ok := d.bookings[id]
	if !ok {
		return leave.Booking{}, leave.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (d *memoryData) SaveBooking(_ context.Context, b leave.Booking) error {
	if _, ok := d.bookings[b.ID]; !ok {
		return leave.ErrNotFound
	}
	d.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (d *memoryData) DeleteBooking(_ context.Context, id string) (bool, error) {
	if _, ok := d.bookings[id]; !ok {
		return false, nil
	}
	delete(d.bookings, id)
	return true, nil
}

func (d *memoryData) BookingsCovering(_ context.Context, day calendar.Date) ([]leave.Booking, error) {
	return d.filter(func(b leave.Booking) bool { return b.Covers(day) }), nil
}

func (d *memoryData) BookingsStartingIn(_ context.Context, year int, month time.Month) ([]leave.Booking, error) {
	return d.filter(func(b leave.Booking) bool {
		return b.Date.Year() == year && b.Date.Month() == month
	}), nil
}

func (d *memoryData) BookingsByUser(_ context.Context, userID string) ([]leave.Booking, error) {
	return d.filter(func(b leave.Booking) bool { return b.UserID == userID }), nil
}

func (d *memoryData) AllBookings(_ context.Context) ([]leave.Booking, error) {
	return d.filter(nil), nil
}

// filter returns matching copies ordered by Date, CreatedAt, ID.
func (d *memoryData) filter(keep func(leave.Booking) bool) []leave.Booking {
	var result []leave.Booking
	for _, b := range d.bookings {
		if keep == nil || keep(b) {
			result = append(result, cloneBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return result
}

func (d *memoryData) AppendHistory(_ context.Context, e leave.HistoryEntry) error {
	d.history = append(d.history, cloneEntry(e))
	return nil
}

// ListHistory walks the log backwards so later appends win timestamp ties.
func (d *memoryData) ListHistory(_ context.Context, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	var result []leave.HistoryEntry
	for i := len(d.history) - 1; i >= 0; i-- {
		e := d.history[i]
		if f.BookingID != "" && e.BookingID != f.BookingID {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		result = append(result, cloneEntry(e))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (d *memoryData) PurgeHistory(_ context.Context) (int, error) {
	n := len(d.history)
	d.history = nil
	return n, nil
}

// =============================================================================
// COPIES - callers never hold pointers into stored records
// =============================================================================

func cloneBooking(b leave.Booking) leave.Booking {
	if b.EndDate != nil {
		end := *b.EndDate
		b.EndDate = &end
	}
	if b.UpdatedAt != nil {
		at := *b.UpdatedAt
		b.UpdatedAt = &at
	}
	return b
}

func cloneEntry(e leave.HistoryEntry) leave.HistoryEntry {
	e.OldData = cloneData(e.OldData)
	e.NewData = cloneData(e.NewData)
	e.BookingData = cloneData(e.BookingData)
	return e
}

func cloneData(d *leave.BookingData) *leave.BookingData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Date != nil {
		v := *d.Date
		c.Date = &v
	}
	if d.EndDate != nil {
		v := *d.EndDate
		c.EndDate = &v
	}
	if d.CreatedAt != nil {
		v := *d.CreatedAt
		c.CreatedAt = &v
	}
	if d.UpdatedAt != nil {
		v := *d.UpdatedAt
		c.UpdatedAt = &v
	}
	return &c
}
