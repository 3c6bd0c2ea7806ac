package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-calendar/calendar"
)

func TestParse_RoundTrip(t *testing.T) {
	d, err := calendar.Parse("2024-03-05")
	require.NoError(t, err)

	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 5, d.Day())
	assert.Equal(t, "2024-03-05", d.String())
	assert.Equal(t, "2024-03", d.YearMonth())
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "05/03/2024", "2024-02-30"} {
		_, err := calendar.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Date    calendar.Date  `json:"date"`
		EndDate *calendar.Date `json:"endDate,omitempty"`
	}

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-31"}`), &w))
	assert.Equal(t, calendar.NewDate(2024, time.January, 31), w.Date)
	assert.Nil(t, w.EndDate)

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-31"}`, string(out))
}

func TestDaysInRange(t *testing.T) {
	start := calendar.MustParse("2024-01-30")
	end := calendar.MustParse("2024-02-02")

	days := calendar.DaysInRange(start, end)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-01-30", days[0].String())
	assert.Equal(t, "2024-01-31", days[1].String())
	assert.Equal(t, "2024-02-01", days[2].String())
	assert.Equal(t, "2024-02-02", days[3].String())

	assert.Equal(t, 1, calendar.DaysCount(start, start), "same day counts once")
	assert.Empty(t, calendar.DaysInRange(end, start), "inverted range expands to nothing")
	assert.Equal(t, 0, calendar.DaysCount(end, start))
}

func TestDaysCount_LeapYear(t *testing.T) {
	// 2024 is a leap year: Feb 28 -> Mar 1 is three days.
	assert.Equal(t, 3, calendar.DaysCount(calendar.MustParse("2024-02-28"), calendar.MustParse("2024-03-01")))
	assert.Equal(t, 2, calendar.DaysCount(calendar.MustParse("2023-02-28"), calendar.MustParse("2023-03-01")))
}

func TestNewRange(t *testing.T) {
	d := calendar.MustParse("2024-01-01")

	r, err := calendar.NewRange(d, calendar.Date{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count(), "zero end is a single day")

	_, err = calendar.NewRange(d, d.AddDays(-1))
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)

	r, err = calendar.NewRange(d, d.AddDays(2))
	require.NoError(t, err)
	assert.True(t, r.Contains(d.AddDays(1)))
	assert.False(t, r.Contains(d.AddDays(3)))
	assert.True(t, r.Overlaps(calendar.SingleDay(d.AddDays(2))))
	assert.False(t, r.Overlaps(calendar.SingleDay(d.AddDays(3))))
}

func TestMonthRange(t *testing.T) {
	feb := calendar.MonthRange(2024, time.February)
	assert.Equal(t, "2024-02-01", feb.Start.String())
	assert.Equal(t, "2024-02-29", feb.End.String())
	assert.Len(t, calendar.DaysInMonth(2024, time.February), 29)

	dec := calendar.MonthRange(2023, time.December)
	assert.Equal(t, "2023-12-31", dec.End.String())
}

func TestToday_UsesBangkokCalendarDay(t *testing.T) {
	// 2024-03-05 20:00 UTC is already 2024-03-06 03:00 in Bangkok.
	clock := calendar.Fixed(time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-03-06", calendar.Today(clock, calendar.Bangkok()).String())
	assert.Equal(t, "2024-03-05", calendar.Today(clock, time.UTC).String())
}

func TestLoadLocation_Fallback(t *testing.T) {
	loc := calendar.LoadLocation("Not/AZone")
	assert.Equal(t, time.UTC, loc)

	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, calendar.Bangkok()).Zone()
	assert.Equal(t, 7*60*60, offset)
}
