package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	memstore "github.com/warp/leave-calendar/leave/store"
	"github.com/warp/leave-calendar/report"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func dp(s string) *calendar.Date {
	v := calendar.MustParse(s)
	return &v
}

// seedEngine creates bookings through the ledger, which skips admission
// checks, so fixtures can pile up on a day.
func seedEngine(t *testing.T, drafts ...leave.Draft) *report.Engine {
	t.Helper()
	store := memstore.NewTxMemory()
	ledger := leave.NewLedger(store, leave.Options{
		Clock: calendar.Fixed(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)),
	})
	for _, draft := range drafts {
		_, err := ledger.Create(context.Background(), draft)
		require.NoError(t, err)
	}
	return report.NewEngine(store)
}

func fixture() []leave.Draft {
	return []leave.Draft{
		{Date: d("2024-01-01"), EndDate: dp("2024-01-03"), UserID: "u1", UserName: "Alice", Category: leave.CategoryDomestic},
		{Date: d("2024-01-02"), UserID: "u2", UserName: "Bob", Category: leave.CategoryInternational},
		{Date: d("2024-02-10"), EndDate: dp("2024-02-14"), UserID: "u2", UserName: "Bob", Category: leave.CategoryInternational},
		{Date: d("2023-12-30"), EndDate: dp("2024-01-01"), UserID: "u3", UserName: "Chai", Category: leave.CategoryDomestic},
	}
}

func TestDayStats_ExpandsMultiDayBookings(t *testing.T) {
	ctx := context.Background()

	// GIVEN: one booking spanning three days
	engine := seedEngine(t, leave.Draft{
		Date: d("2024-01-01"), EndDate: dp("2024-01-03"),
		UserID: "u1", UserName: "Alice", Category: leave.CategoryDomestic,
	})

	// WHEN: computing day statistics
	stats, err := engine.DayStats(ctx, 0)
	require.NoError(t, err)

	// THEN: each covered day lists the booking once, latest first on ties
	require.Len(t, stats, 3)
	for i, want := range []string{"2024-01-03", "2024-01-02", "2024-01-01"} {
		assert.Equal(t, want, stats[i].Date.String())
		assert.Equal(t, 1, stats[i].BookingCount)
		assert.Equal(t, []string{"Alice"}, stats[i].Users)
	}
}

func TestDayStats_OrderingAndLimit(t *testing.T) {
	engine := seedEngine(t, fixture()...)

	stats, err := engine.DayStats(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// 2024-01-01 is covered by u1 and u3; 2024-01-02 by u1 and u2.
	assert.Equal(t, "2024-01-02", stats[0].Date.String())
	assert.Equal(t, 2, stats[0].BookingCount)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, stats[0].Users)
	assert.Equal(t, "2024-01-01", stats[1].Date.String())
	assert.Equal(t, "อ 2 ม.ค. 2567", stats[0].DateDisplay)

	all, err := engine.DayStats(context.Background(), -1)
	require.NoError(t, err)
	assert.Len(t, all, report.DefaultDayStatsLimit)
}

func TestDayStats_DistinctNames(t *testing.T) {
	// Two bookings by people sharing a display name count twice but list once.
	engine := seedEngine(t,
		leave.Draft{Date: d("2024-05-01"), UserID: "u1", UserName: "Nok", Category: leave.CategoryDomestic},
		leave.Draft{Date: d("2024-05-01"), UserID: "u2", UserName: "Nok", Category: leave.CategoryDomestic},
	)
	stats, err := engine.DayStats(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].BookingCount)
	assert.Equal(t, []string{"Nok"}, stats[0].Users)
}

func TestTimePeriods(t *testing.T) {
	ctx := context.Background()
	engine := seedEngine(t, fixture()...)

	months, err := engine.TimePeriods(ctx, report.ByMonth)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, "2024-02", months[0].Period)
	assert.Equal(t, "2024-01", months[1].Period)
	assert.Equal(t, "2023-12", months[2].Period, "keyed by start date")

	jan := months[1]
	assert.Equal(t, 2, jan.TotalBookings)
	assert.Equal(t, 4, jan.TotalDays)
	assert.Equal(t, 1, jan.DomesticBookings)
	assert.Equal(t, 3, jan.DomesticDays)
	assert.Equal(t, 1, jan.InternationalBookings)
	assert.Equal(t, 1, jan.InternationalDays)

	years, err := engine.TimePeriods(ctx, report.ByYear)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "2024", years[0].Period)
	assert.Equal(t, 3, years[0].TotalBookings)
	assert.Equal(t, 9, years[0].TotalDays)

	_, err = engine.TimePeriods(ctx, "week")
	assert.ErrorIs(t, err, report.ErrInvalidPeriod)
}

func TestParsePeriodType(t *testing.T) {
	p, err := report.ParsePeriodType("")
	require.NoError(t, err)
	assert.Equal(t, report.ByMonth, p)
	p, err = report.ParsePeriodType("year")
	require.NoError(t, err)
	assert.Equal(t, report.ByYear, p)
	_, err = report.ParsePeriodType("decade")
	assert.ErrorIs(t, err, report.ErrInvalidPeriod)
}

func TestUsers_BusiestFirst(t *testing.T) {
	engine := seedEngine(t, fixture()...)

	users, err := engine.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, "u2", users[0].UserID)
	assert.Equal(t, 6, users[0].TotalDays)
	assert.Equal(t, 2, users[0].InternationalBookings)
	// u1 and u3 both have 3 days; ledger order (by date) puts u3 first.
	assert.Equal(t, "u3", users[1].UserID)
	assert.Equal(t, "u1", users[2].UserID)
}

func TestCategories_AlwaysBoth(t *testing.T) {
	engine := seedEngine(t,
		leave.Draft{Date: d("2024-01-01"), EndDate: dp("2024-01-02"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic},
		leave.Draft{Date: d("2024-02-01"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic},
		leave.Draft{Date: d("2024-03-01"), UserID: "u2", UserName: "B", Category: leave.CategoryDomestic},
	)

	cats, err := engine.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)

	dom := cats[0]
	assert.Equal(t, leave.CategoryDomestic, dom.Category)
	assert.Equal(t, "ในประเทศ", dom.CategoryLabel)
	assert.Equal(t, 3, dom.TotalBookings)
	assert.Equal(t, 4, dom.TotalDays)
	assert.Equal(t, 1.3, dom.AverageDays)
	assert.Equal(t, 2, dom.UniqueUsers)

	intl := cats[1]
	assert.Equal(t, leave.CategoryInternational, intl.Category)
	assert.Zero(t, intl.TotalBookings)
	assert.Zero(t, intl.AverageDays)
}

func TestCategories_AverageRoundsHalfUp(t *testing.T) {
	// 9 days over 4 bookings = 2.25 -> 2.3
	engine := seedEngine(t,
		leave.Draft{Date: d("2024-01-01"), EndDate: dp("2024-01-03"), UserID: "u1", UserName: "A", Category: leave.CategoryInternational},
		leave.Draft{Date: d("2024-02-01"), EndDate: dp("2024-02-04"), UserID: "u1", UserName: "A", Category: leave.CategoryInternational},
		leave.Draft{Date: d("2024-03-01"), UserID: "u1", UserName: "A", Category: leave.CategoryInternational},
		leave.Draft{Date: d("2024-04-01"), UserID: "u1", UserName: "A", Category: leave.CategoryInternational},
	)
	cats, err := engine.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, leave.CategoryInternational, cats[0].Category)
	assert.Equal(t, 2.3, cats[0].AverageDays)
}

func TestSummary_ConsistentWithOtherReports(t *testing.T) {
	ctx := context.Background()
	engine := seedEngine(t, fixture()...)

	summary, err := engine.Summary(ctx)
	require.NoError(t, err)
	cats, err := engine.Categories(ctx)
	require.NoError(t, err)
	users, err := engine.Users(ctx)
	require.NoError(t, err)

	catDays := 0
	for _, c := range cats {
		catDays += c.TotalDays
	}
	userBookings := 0
	for _, u := range users {
		userBookings += u.TotalBookings
	}
	assert.Equal(t, summary.TotalDays, catDays)
	assert.Equal(t, summary.TotalBookings, userBookings)

	assert.Equal(t, 4, summary.TotalBookings)
	assert.Equal(t, 12, summary.TotalDays)
	assert.Equal(t, 3, summary.TotalUsers)
	assert.Equal(t, 3.0, summary.AverageDaysPerBooking)
	assert.Equal(t, 6, summary.InternationalDays)

	require.NotNil(t, summary.MostPopularDay)
	assert.Equal(t, "2024-01-02", summary.MostPopularDay.Date.String())
	require.NotNil(t, summary.MostActiveUser)
	assert.Equal(t, "u2", summary.MostActiveUser.UserID)
}

func TestSummary_Empty(t *testing.T) {
	summary, err := seedEngine(t).Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalBookings)
	assert.Zero(t, summary.AverageDaysPerBooking)
	assert.Nil(t, summary.MostPopularDay)
	assert.Nil(t, summary.MostActiveUser)
}

func TestMonthly_OneRowPerDay(t *testing.T) {
	ctx := context.Background()
	engine := seedEngine(t, fixture()...)

	rows, err := engine.Monthly(ctx, 2024, 1)
	require.NoError(t, err)
	require.Len(t, rows, 31)

	first := rows[0]
	assert.Equal(t, "2024-01-01", first.Date.String())
	assert.Equal(t, "1 มกราคม 2567", first.DateDisplay)
	assert.Equal(t, "จ", first.DayOfWeek)
	require.Len(t, first.Bookings, 2, "u3's span from December reaches Jan 1")
	assert.Equal(t, "Chai", first.Bookings[0].UserName)
	assert.True(t, first.Bookings[0].IsMultiDay)
	assert.Equal(t, "2023-12-30", first.Bookings[0].StartDate.String())

	second := rows[1]
	require.Len(t, second.Bookings, 2)
	assert.Equal(t, "Bob", second.Bookings[1].UserName)
	assert.False(t, second.Bookings[1].IsMultiDay)
	assert.Equal(t, "นอกประเทศ", second.Bookings[1].CategoryLabel)

	assert.NotNil(t, rows[30].Bookings, "empty days still carry a list")
	assert.Empty(t, rows[30].Bookings)

	feb, err := engine.Monthly(ctx, 2024, 2)
	require.NoError(t, err)
	assert.Len(t, feb, 29)

	_, err = engine.Monthly(ctx, 2024, 13)
	assert.ErrorIs(t, err, report.ErrInvalidMonth)
	_, err = engine.Monthly(ctx, 2024, 0)
	assert.ErrorIs(t, err, report.ErrInvalidMonth)
}

type failingStore struct {
	leave.BookingStore
}

func (failingStore) AllBookings(context.Context) ([]leave.Booking, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_PropagatesStoreErrors(t *testing.T) {
	engine := report.NewEngine(failingStore{})
	_, err := engine.Summary(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	_, err = engine.Monthly(context.Background(), 2024, 1)
	assert.Error(t, err)
}
