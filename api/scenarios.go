/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built booking sets so the calendar and reports have
	something to show. Each scenario resets bookings and history, then books
	through leave.Service so every loaded state passes the admission checks.

AVAILABLE SCENARIOS:

	empty:       Reset only
	full-day:    Two people on the same day next week (capacity reached)
	busy-month:  A dozen bookings over the next five weeks, both categories

HOW SCENARIOS WORK:
 1. Delete every booking and purge history
 2. Book drafts dated relative to today in the service's timezone

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "busy-month"}

NOTE:

	Routes are mounted only when Handler.Scenarios is true (LEAVE_DEMO).
	Never enable against production data.

SEE ALSO:
  - server.go: route mounting
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/leave-calendar/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "No bookings, no history",
	},
	{
		ID:          "full-day",
		Name:        "Full Day",
		Description: "Two bookings on the same day next week; a third is rejected",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "Domestic and international leave spread over five weeks",
	},
}

// demoBooking is a draft dated relative to today.
type demoBooking struct {
	offset   int
	days     int
	userID   string
	userName string
	category leave.Category
	reason   string
}

var scenarioBookings = map[string][]demoBooking{
	"empty": nil,
	"full-day": {
		{7, 1, "U-demo-1", "สมชาย ใจดี", leave.CategoryDomestic, "ธุระส่วนตัว"},
		{7, 3, "U-demo-2", "สมหญิง รักงาน", leave.CategoryInternational, "เที่ยวญี่ปุ่น"},
	},
	"busy-month": {
		{2, 1, "U-demo-1", "สมชาย ใจดี", leave.CategoryDomestic, "ธุระส่วนตัว"},
		{3, 2, "U-demo-2", "สมหญิง รักงาน", leave.CategoryDomestic, "กลับบ้านต่างจังหวัด"},
		{5, 7, "U-demo-3", "Alice", leave.CategoryInternational, "Family trip"},
		{9, 1, "U-demo-4", "Bob", leave.CategoryDomestic, ""},
		{12, 4, "U-demo-5", "มานี มีนา", leave.CategoryDomestic, "พักผ่อน"},
		{14, 1, "U-demo-6", "ปิติ", leave.CategoryDomestic, ""},
		{16, 9, "U-demo-7", "Chai", leave.CategoryInternational, "ยุโรป"},
		{20, 1, "U-demo-8", "Dao", leave.CategoryDomestic, "หาหมอ"},
		{22, 2, "U-demo-9", "Ekk", leave.CategoryDomestic, ""},
		{27, 5, "U-demo-10", "Fah", leave.CategoryInternational, "สิงคโปร์"},
		{31, 1, "U-demo-11", "Gun", leave.CategoryDomestic, ""},
		{34, 3, "U-demo-12", "Hong", leave.CategoryDomestic, "งานแต่งเพื่อน"},
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	bookings, ok := scenarioBookings[req.ScenarioID]
	if !ok {
		h.fail(w, r, badRequest(fmt.Sprintf("unknown scenario: %s", req.ScenarioID), nil))
		return
	}

	loaded, err := h.loadScenario(r.Context(), bookings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Printf("[API] scenario loaded id=%s bookings=%d", req.ScenarioID, len(loaded))
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": req.ScenarioID,
		"bookings": nonNil(loaded),
	})
}

// =============================================================================
// LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, bookings []demoBooking) ([]leave.Booking, error) {
	if err := h.resetBookings(ctx); err != nil {
		return nil, err
	}

	today := h.Bookings.Validator.Today()
	var loaded []leave.Booking
	for _, demo := range bookings {
		draft := leave.Draft{
			Date:     today.AddDays(demo.offset),
			UserID:   demo.userID,
			UserName: demo.userName,
			Category: demo.category,
			Reason:   demo.reason,
		}
		if demo.days > 1 {
			end := draft.Date.AddDays(demo.days - 1)
			draft.EndDate = &end
		}
		b, err := h.Bookings.Book(ctx, draft)
		if err != nil {
			return loaded, fmt.Errorf("scenario booking for %s on %s: %w", demo.userID, draft.Date, err)
		}
		loaded = append(loaded, b)
	}
	return loaded, nil
}

// resetBookings removes every booking and all history without recording
// the deletions.
func (h *Handler) resetBookings(ctx context.Context) error {
	store := h.Bookings.Store
	all, err := store.AllBookings(ctx)
	if err != nil {
		return err
	}
	for _, b := range all {
		if _, err := store.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
	}
	_, err = h.Bookings.History().Purge(ctx)
	return err
}
