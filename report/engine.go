/*
Package report derives read-only reports from the booking ledger.

PURPOSE:
  Every report is a pure function of the current booking set. The engine
  reads all bookings once per call and recomputes from scratch; nothing is
  cached and nothing is written back.

DAY COUNTING:
  All day totals use leave.Booking.DaysCovered, the same rule the
  max-duration check uses. Multi-day bookings contribute to every day they
  span in DayStats and Monthly.

REPORTS:
  TimePeriods  grouped by start month ("2024-03") or year ("2024")
  Users        grouped by user id, busiest first
  DayStats     busiest calendar days, truncated to a limit
  Categories   both categories with averages and distinct users
  Summary      global totals + top day + top user
  Monthly      one row per day of a month with the bookings covering it

KEYS:
  Grouping keys are ISO strings and sort lexically. Thai labels
  (format.go) are presentation fields next to them.
*/
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
)

// DefaultDayStatsLimit applies when DayStats is called with limit <= 0.
const DefaultDayStatsLimit = 10

var (
	ErrInvalidPeriod = errors.New("report: period type must be month or year")
	ErrInvalidMonth  = errors.New("report: month must be between 1 and 12")
)

// PeriodType selects the TimePeriods grouping.
type PeriodType string

const (
	ByMonth PeriodType = "month"
	ByYear  PeriodType = "year"
)

// ParsePeriodType accepts "month", "year" or "" (month).
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case "", ByMonth:
		return ByMonth, nil
	case ByYear:
		return ByYear, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// =============================================================================
// REPORT SHAPES
// =============================================================================

// Split holds per-category counts shared by several reports.
type Split struct {
	DomesticBookings      int `json:"domesticBookings"`
	InternationalBookings int `json:"internationalBookings"`
	DomesticDays          int `json:"domesticDays"`
	InternationalDays     int `json:"internationalDays"`
}

func (s *Split) add(b leave.Booking, days int) {
	if b.Category == leave.CategoryDomestic {
		s.DomesticBookings++
		s.DomesticDays += days
		return
	}
	s.InternationalBookings++
	s.InternationalDays += days
}

type TimePeriodReport struct {
	Period        string `json:"period"`
	TotalBookings int    `json:"totalBookings"`
	TotalDays     int    `json:"totalDays"`
	Split
}

type UserReport struct {
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	TotalBookings int    `json:"totalBookings"`
	TotalDays     int    `json:"totalDays"`
	Split
}

type DayStatsReport struct {
	Date         calendar.Date `json:"date"`
	DateDisplay  string        `json:"dateDisplay"`
	BookingCount int           `json:"bookingCount"`
	Users        []string      `json:"users"`
}

type CategoryReport struct {
	Category      leave.Category `json:"category"`
	CategoryLabel string         `json:"categoryLabel"`
	TotalBookings int            `json:"totalBookings"`
	TotalDays     int            `json:"totalDays"`
	AverageDays   float64        `json:"averageDays"`
	UniqueUsers   int            `json:"uniqueUsers"`
}

type SummaryReport struct {
	TotalBookings         int     `json:"totalBookings"`
	TotalDays             int     `json:"totalDays"`
	TotalUsers            int     `json:"totalUsers"`
	AverageDaysPerBooking float64 `json:"averageDaysPerBooking"`
	Split

	MostPopularDay *DayStatsReport `json:"mostPopularDay,omitempty"`
	MostActiveUser *UserReport     `json:"mostActiveUser,omitempty"`
}

// MonthlyBooking is one booking as listed under a day of the monthly report.
type MonthlyBooking struct {
	BookingID     string         `json:"bookingId"`
	UserName      string         `json:"userName"`
	Category      leave.Category `json:"category"`
	CategoryLabel string         `json:"categoryLabel"`
	StartDate     calendar.Date  `json:"startDate"`
	EndDate       *calendar.Date `json:"endDate,omitempty"`
	IsMultiDay    bool           `json:"isMultiDay"`
}

type MonthlyDayReport struct {
	Date        calendar.Date    `json:"date"`
	DateDisplay string           `json:"dateDisplay"`
	DayOfWeek   string           `json:"dayOfWeek"`
	Bookings    []MonthlyBooking `json:"bookings"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes reports over a booking store.
type Engine struct {
	Store leave.BookingStore
}

func NewEngine(store leave.BookingStore) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) load(ctx context.Context) ([]leave.Booking, error) {
	bookings, err := e.Store.AllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return bookings, nil
}

// TimePeriods groups bookings by the year or year-month of their start date,
// most recent period first.
func (e *Engine) TimePeriods(ctx context.Context, period PeriodType) ([]TimePeriodReport, error) {
	if period != ByMonth && period != ByYear {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	bookings, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return timePeriods(bookings, period), nil
}

func timePeriods(bookings []leave.Booking, period PeriodType) []TimePeriodReport {
	index := make(map[string]int)
	var out []TimePeriodReport
	for _, b := range bookings {
		key := b.Date.YearMonth()
		if period == ByYear {
			key = key[:4]
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, TimePeriodReport{Period: key})
		}
		days := b.DaysCovered()
		out[i].TotalBookings++
		out[i].TotalDays += days
		out[i].add(b, days)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out
}

// Users groups bookings by user, most total days first. Ties keep the order
// in which users first appear in the ledger.
func (e *Engine) Users(ctx context.Context) ([]UserReport, error) {
	bookings, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return users(bookings), nil
}

func users(bookings []leave.Booking) []UserReport {
	index := make(map[string]int)
	var out []UserReport
	for _, b := range bookings {
		i, ok := index[b.UserID]
		if !ok {
			i = len(out)
			index[b.UserID] = i
			out = append(out, UserReport{UserID: b.UserID, UserName: b.UserName})
		}
		days := b.DaysCovered()
		out[i].TotalBookings++
		out[i].TotalDays += days
		out[i].add(b, days)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalDays > out[j].TotalDays })
	return out
}

// DayStats lists the days touched by any booking, busiest first and latest
// first among equals.
func (e *Engine) DayStats(ctx context.Context, limit int) ([]DayStatsReport, error) {
	bookings, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return dayStats(bookings, limit), nil
}

func dayStats(bookings []leave.Booking, limit int) []DayStatsReport {
	if limit <= 0 {
		limit = DefaultDayStatsLimit
	}

	type acc struct {
		count int
		seen  map[string]bool
		names []string
	}
	days := make(map[calendar.Date]*acc)
	for _, b := range bookings {
		for _, day := range b.Span().Days() {
			a := days[day]
			if a == nil {
				a = &acc{seen: make(map[string]bool)}
				days[day] = a
			}
			a.count++
			if !a.seen[b.UserName] {
				a.seen[b.UserName] = true
				a.names = append(a.names, b.UserName)
			}
		}
	}

	out := make([]DayStatsReport, 0, len(days))
	for day, a := range days {
		out = append(out, DayStatsReport{
			Date:         day,
			DateDisplay:  ShortDate(day),
			BookingCount: a.count,
			Users:        a.names,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingCount != out[j].BookingCount {
			return out[i].BookingCount > out[j].BookingCount
		}
		return out[i].Date.After(out[j].Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Categories reports both categories, including empty ones, ordered by
// booking count with domestic first on ties.
func (e *Engine) Categories(ctx context.Context) ([]CategoryReport, error) {
	bookings, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return categories(bookings), nil
}

func categories(bookings []leave.Booking) []CategoryReport {
	out := make([]CategoryReport, len(leave.Categories))
	usersBy := make([]map[string]bool, len(leave.Categories))
	index := make(map[leave.Category]int)
	for i, c := range leave.Categories {
		out[i] = CategoryReport{Category: c, CategoryLabel: c.Label()}
		usersBy[i] = make(map[string]bool)
		index[c] = i
	}

	for _, b := range bookings {
		i, ok := index[b.Category]
		if !ok {
			continue
		}
		out[i].TotalBookings++
		out[i].TotalDays += b.DaysCovered()
		usersBy[i][b.UserID] = true
	}
	for i := range out {
		out[i].AverageDays = average(out[i].TotalDays, out[i].TotalBookings)
		out[i].UniqueUsers = len(usersBy[i])
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalBookings > out[j].TotalBookings })
	return out
}

// Summary reports global totals plus the busiest day and user.
func (e *Engine) Summary(ctx context.Context) (SummaryReport, error) {
	bookings, err := e.load(ctx)
	if err != nil {
		return SummaryReport{}, err
	}

	var s SummaryReport
	distinct := make(map[string]bool)
	for _, b := range bookings {
		days := b.DaysCovered()
		s.TotalBookings++
		s.TotalDays += days
		s.add(b, days)
		distinct[b.UserID] = true
	}
	s.TotalUsers = len(distinct)
	s.AverageDaysPerBooking = average(s.TotalDays, s.TotalBookings)

	if top := dayStats(bookings, 1); len(top) > 0 {
		s.MostPopularDay = &top[0]
	}
	if top := users(bookings); len(top) > 0 {
		s.MostActiveUser = &top[0]
	}
	return s, nil
}

// Monthly returns one row per calendar day of year/month (month 1-12), each
// listing the bookings covering that day.
func (e *Engine) Monthly(ctx context.Context, year, month int) ([]MonthlyDayReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	bookings, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	return monthly(bookings, year, time.Month(month)), nil
}

func monthly(bookings []leave.Booking, year int, month time.Month) []MonthlyDayReport {
	r := calendar.MonthRange(year, month)

	var inMonth []leave.Booking
	for _, b := range bookings {
		if b.Span().Overlaps(r) {
			inMonth = append(inMonth, b)
		}
	}

	days := r.Days()
	out := make([]MonthlyDayReport, 0, len(days))
	for _, day := range days {
		row := MonthlyDayReport{
			Date:        day,
			DateDisplay: LongDate(day),
			DayOfWeek:   Weekday(day),
			Bookings:    []MonthlyBooking{},
		}
		for _, b := range inMonth {
			if !b.Covers(day) {
				continue
			}
			row.Bookings = append(row.Bookings, MonthlyBooking{
				BookingID:     b.ID,
				UserName:      b.UserName,
				Category:      b.Category,
				CategoryLabel: b.Category.Label(),
				StartDate:     b.Date,
				EndDate:       b.EndDate,
				IsMultiDay:    b.IsMultiDay(),
			})
		}
		out = append(out, row)
	}
	return out
}

// average is days/bookings rounded half away from zero to one decimal.
func average(days, bookings int) float64 {
	if bookings == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(days)).
		Div(decimal.NewFromInt(int64(bookings))).
		Round(1).
		InexactFloat64()
}
