package leave

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-calendar/calendar"
)

// =============================================================================
// HISTORY LEDGER - Append-only audit log of booking mutations
// =============================================================================

// History appends and reads audit entries. It never edits or removes a
// single entry; Purge is the only destructive operation and clears the log.
type History struct {
	Store HistoryStore
	Clock calendar.Clock
	NewID func() string

	stamp *stamper
}

func NewHistory(store HistoryStore, clock calendar.Clock) *History {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &History{
		Store: store,
		Clock: clock,
		NewID: uuid.NewString,
		stamp: &stamper{},
	}
}

// on returns a History writing to store that shares this one's timestamps.
func (h *History) on(store HistoryStore) *History {
	c := *h
	c.Store = store
	return &c
}

// Append assigns ID and Timestamp and persists the entry. Timestamps never
// go backwards within one History, even if the clock does.
func (h *History) Append(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	e.ID = h.NewID()
	e.Timestamp = h.stamp.next(h.Clock())
	if err := h.Store.AppendHistory(ctx, e); err != nil {
		return HistoryEntry{}, persistErr("append history", err)
	}
	return e, nil
}

// All returns the newest entries first. limit <= 0 returns everything.
func (h *History) All(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return h.list(ctx, HistoryFilter{Limit: limit})
}

func (h *History) ByBooking(ctx context.Context, bookingID string) ([]HistoryEntry, error) {
	return h.list(ctx, HistoryFilter{BookingID: bookingID})
}

func (h *History) ByUser(ctx context.Context, userID string) ([]HistoryEntry, error) {
	return h.list(ctx, HistoryFilter{UserID: userID})
}

// Purge clears the whole log. Irreversible.
func (h *History) Purge(ctx context.Context) (int, error) {
	n, err := h.Store.PurgeHistory(ctx)
	if err != nil {
		return 0, persistErr("purge history", err)
	}
	return n, nil
}

func (h *History) list(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	entries, err := h.Store.ListHistory(ctx, f)
	if err != nil {
		return nil, persistErr("list history", err)
	}
	return entries, nil
}

// stamper hands out non-decreasing UTC timestamps at microsecond precision,
// the finest every backend stores.
type stamper struct {
	mu   sync.Mutex
	last time.Time
}

func (s *stamper) next(now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}
