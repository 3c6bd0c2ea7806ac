/*
handlers.go - HTTP API handlers for the leave calendar

PURPOSE:
  Exposes the booking core, the report engine and user profiles to the LINE
  Mini-App front end. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Bookings:
    GET    /api/bookings?date=YYYY-MM-DD       Bookings covering a day
    GET    /api/bookings?year=YYYY&month=1-12  Bookings starting in a month
    POST   /api/bookings                       Validate + create
    PUT    /api/bookings                       Validate + edit
    DELETE /api/bookings?id=                   Cancel
    POST   /api/bookings/validate              Dry-run admission check

  History:
    GET    /api/history?bookingId=|userId=|limit=
    DELETE /api/history                        Purge (admin)

  Reports:
    GET    /api/reports?type=summary|time|category|user|day|monthly
    GET    /api/reports/pdf?type=...            Same report as a PDF

  Users:
    GET    /api/users?lineUserId=
    POST   /api/users
    PUT    /api/users

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (validator tags on DTOs)
  3. Call domain logic (leave.Service, report.Engine, profile.Service)
  4. Serialize response
  5. Handle errors (fail)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, edit window closed, invalid input
  - 404: Booking or user not found
  - 409: Conflict (profile exists, storage-level quota violation)
  - 500: Internal errors; details are logged, never returned

SECURITY NOTE:
  The LINE front end supplies userId; nothing here authenticates it.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	"github.com/warp/leave-calendar/profile"
	"github.com/warp/leave-calendar/report"
	"github.com/warp/leave-calendar/report/pdf"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Bookings *leave.Service
	Reports  *report.Engine
	PDF      *pdf.Renderer
	Profiles *profile.Service

	// Ping backs /healthz; nil reports healthy.
	Ping func(ctx context.Context) error
	// Scenarios enables the demo data endpoints.
	Scenarios bool

	Logger *log.Logger
}

// NewHandler wires a handler around the booking service. Reports read the
// same store the service writes to.
func NewHandler(bookings *leave.Service, profiles *profile.Service, renderer *pdf.Renderer) *Handler {
	if renderer == nil {
		renderer = pdf.New(pdf.Options{})
	}
	return &Handler{
		Bookings: bookings,
		Reports:  report.NewEngine(bookings.Store),
		PDF:      renderer,
		Profiles: profiles,
		Logger:   log.Default(),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// BOOKING ENDPOINTS
// =============================================================================

// ListBookings answers either ?date= or ?year=&month=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if raw := q.Get("date"); raw != "" {
		day, err := calendar.Parse(raw)
		if err != nil {
			h.fail(w, r, badRequest("invalid date parameter", err))
			return
		}
		bookings, err := h.Bookings.Ledger.ByDate(ctx, day)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(bookings))
		return
	}

	if q.Get("year") != "" && q.Get("month") != "" {
		year, month, err := yearMonth(q)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		bookings, err := h.Bookings.Ledger.ByMonth(ctx, year, time.Month(month))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(bookings))
		return
	}

	h.fail(w, r, badRequest("Either date or year+month parameters are required", nil))
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	booking, err := h.Bookings.Book(r.Context(), req.Booking.draft())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req UpdateBookingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	booking, err := h.Bookings.Edit(r.Context(), req.BookingID, req.Updates.updates())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.fail(w, r, badRequest("id parameter is required", nil))
		return
	}
	if err := h.Bookings.Cancel(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// ValidateBooking answers {valid, error} without writing. Rule violations
// are a 200 with valid=false; only infrastructure failures are errors.
func (h *Handler) ValidateBooking(w http.ResponseWriter, r *http.Request) {
	var req ValidateBookingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := leave.Check(h.Bookings.Validate(r.Context(), req.proposal()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// HISTORY ENDPOINTS
// =============================================================================

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()
	history := h.Bookings.History()

	var (
		entries []leave.HistoryEntry
		err     error
	)
	switch {
	case q.Get("bookingId") != "":
		entries, err = history.ByBooking(ctx, q.Get("bookingId"))
	case q.Get("userId") != "":
		entries, err = history.ByUser(ctx, q.Get("userId"))
	default:
		limit, perr := optionalInt(q, "limit", 0)
		if perr != nil {
			h.fail(w, r, perr)
			return
		}
		entries, err = history.All(ctx, limit)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (h *Handler) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.Bookings.History().Purge(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Printf("[API] history purged entries=%d request_id=%s", n, middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, PurgeResponse{Success: true, Deleted: n})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

type reportQuery struct {
	kind   string
	period report.PeriodType
	limit  int
	year   int
	month  int
}

func parseReportQuery(q url.Values) (reportQuery, error) {
	rq := reportQuery{kind: q.Get("type")}
	var err error
	switch rq.kind {
	case "":
		return rq, badRequest("type parameter is required", nil)
	case "summary", "category", "user":
	case "time":
		if rq.period, err = report.ParsePeriodType(q.Get("periodType")); err != nil {
			return rq, badRequest("invalid periodType", err)
		}
	case "day":
		if rq.limit, err = optionalInt(q, "limit", report.DefaultDayStatsLimit); err != nil {
			return rq, err
		}
	case "monthly":
		if q.Get("year") == "" || q.Get("month") == "" {
			return rq, badRequest("year and month parameters are required for monthly report", nil)
		}
		if rq.year, rq.month, err = yearMonth(q); err != nil {
			return rq, err
		}
	default:
		return rq, badRequest(fmt.Sprintf("Unknown report type: %s", rq.kind), nil)
	}
	return rq, nil
}

func (h *Handler) runReport(ctx context.Context, rq reportQuery) (any, error) {
	switch rq.kind {
	case "summary":
		return h.Reports.Summary(ctx)
	case "time":
		rows, err := h.Reports.TimePeriods(ctx, rq.period)
		return nonNil(rows), err
	case "category":
		return h.Reports.Categories(ctx)
	case "user":
		rows, err := h.Reports.Users(ctx)
		return nonNil(rows), err
	case "day":
		rows, err := h.Reports.DayStats(ctx, rq.limit)
		return nonNil(rows), err
	default:
		return h.Reports.Monthly(ctx, rq.year, rq.month)
	}
}

// GetReport serves every report type as JSON.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rq, err := parseReportQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.runReport(r.Context(), rq)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetReportPDF serves the same reports as a PDF attachment.
func (h *Handler) GetReportPDF(w http.ResponseWriter, r *http.Request) {
	rq, err := parseReportQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.runReport(r.Context(), rq)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var doc []byte
	switch v := data.(type) {
	case report.SummaryReport:
		doc, err = h.PDF.Summary(v)
	case []report.TimePeriodReport:
		doc, err = h.PDF.TimePeriods(v, rq.period)
	case []report.CategoryReport:
		doc, err = h.PDF.Categories(v)
	case []report.UserReport:
		doc, err = h.PDF.Users(v)
	case []report.DayStatsReport:
		doc, err = h.PDF.DayStats(v)
	case []report.MonthlyDayReport:
		doc, err = h.PDF.Monthly(rq.year, rq.month, v)
	default:
		err = fmt.Errorf("no pdf layout for %T", data)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leave-report-%s.pdf"`, rq.kind))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("lineUserId")
	if id == "" {
		h.fail(w, r, badRequest("lineUserId is required", nil))
		return
	}
	p, err := h.Profiles.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.FormData == nil {
		h.fail(w, r, badRequest("lineUserId and formData are required", nil))
		return
	}

	p, err := h.Profiles.Register(r.Context(), req.LineUserID, *req.FormData, req.LineProfile)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.FormData == nil {
		h.fail(w, r, badRequest("lineUserId and formData are required", nil))
		return
	}

	p, err := h.Profiles.Update(r.Context(), req.LineUserID, *req.FormData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.Logger.Printf("[API] health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// requestError is a malformed request, answered with 400.
type requestError struct {
	msg     string
	details any
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string, cause error) error {
	e := &requestError{msg: msg}
	if cause != nil {
		e.details = cause.Error()
	}
	return e
}

// decode reads a JSON body into dst and checks its validate tags.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("invalid JSON body", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return badRequest("invalid request", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &requestError{msg: "invalid request", details: fields}
	}
	return nil
}

func optionalInt(q url.Values, name string, fallback int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s parameter", name), err)
	}
	return n, nil
}

// yearMonth reads ?year=&month= with month as 1-12.
func yearMonth(q url.Values) (int, int, error) {
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return 0, 0, badRequest("invalid year parameter", err)
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, badRequest("month must be between 1 and 12", err)
	}
	return year, month, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// fail maps domain errors onto HTTP statuses. Validation and edit-window
// messages go out verbatim; internal failures are logged and answered
// generically.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr  *requestError
		ve      *leave.ValidationError
		ew      *leave.EditWindowError
		profErr *profile.ValidationError
	)

	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: reqErr.msg, Code: "bad_request", Details: reqErr.details})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Code: string(ve.Rule)})
	case errors.As(err, &ew):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ew.Error(), Code: "edit_window_closed"})
	case errors.Is(err, leave.ErrQuotaConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: string(leave.RuleMonthlyQuota)})
	case errors.Is(err, leave.ErrUnknownCategory), errors.Is(err, leave.ErrInvalidRange):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
	case errors.Is(err, report.ErrInvalidMonth), errors.Is(err, report.ErrInvalidPeriod):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
	case leave.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Booking not found", Code: "not_found"})
	case errors.As(err, &profErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid form", Code: "invalid_form", Details: profErr.Fields})
	case errors.Is(err, profile.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_form"})
	case errors.Is(err, profile.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "User not found", Code: "not_found"})
	case errors.Is(err, profile.ErrExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "User already registered", Code: "exists"})
	default:
		h.Logger.Printf("[API] %s %s failed request_id=%s err=%v",
			r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
