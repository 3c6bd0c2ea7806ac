package pdf_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	memstore "github.com/warp/leave-calendar/leave/store"
	"github.com/warp/leave-calendar/report"
	"github.com/warp/leave-calendar/report/pdf"
)

func seededEngine(t *testing.T) *report.Engine {
	t.Helper()
	store := memstore.NewTxMemory()
	ledger := leave.NewLedger(store, leave.Options{Clock: calendar.Fixed(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))})
	end := calendar.MustParse("2024-03-12")
	drafts := []leave.Draft{
		{Date: calendar.MustParse("2024-03-10"), EndDate: &end, UserID: "u1", UserName: "สมชาย ใจดี", Category: leave.CategoryInternational},
		{Date: calendar.MustParse("2024-03-11"), UserID: "u2", UserName: "Alice", Category: leave.CategoryDomestic},
	}
	for _, draft := range drafts {
		_, err := ledger.Create(context.Background(), draft)
		require.NoError(t, err)
	}
	return report.NewEngine(store)
}

func assertPDF(t *testing.T, b []byte, err error) {
	t.Helper()
	require.NoError(t, err)
	require.Greater(t, len(b), 4)
	assert.Equal(t, "%PDF", string(b[:4]))
}

func TestRenderer_AllReports(t *testing.T) {
	ctx := context.Background()
	engine := seededEngine(t)
	r := pdf.New(pdf.Options{})

	summary, err := engine.Summary(ctx)
	require.NoError(t, err)
	b, err := r.Summary(summary)
	assertPDF(t, b, err)

	periods, err := engine.TimePeriods(ctx, report.ByYear)
	require.NoError(t, err)
	b, err = r.TimePeriods(periods, report.ByYear)
	assertPDF(t, b, err)

	cats, err := engine.Categories(ctx)
	require.NoError(t, err)
	b, err = r.Categories(cats)
	assertPDF(t, b, err)

	users, err := engine.Users(ctx)
	require.NoError(t, err)
	b, err = r.Users(users)
	assertPDF(t, b, err)

	days, err := engine.DayStats(ctx, 0)
	require.NoError(t, err)
	b, err = r.DayStats(days)
	assertPDF(t, b, err)

	rows, err := engine.Monthly(ctx, 2024, 3)
	require.NoError(t, err)
	b, err = r.Monthly(2024, 3, rows)
	assertPDF(t, b, err)
}

func TestRenderer_EmptyReports(t *testing.T) {
	r := pdf.New(pdf.Options{})
	b, err := r.DayStats(nil)
	assertPDF(t, b, err)
	b, err = r.Summary(report.SummaryReport{})
	assertPDF(t, b, err)
}

func TestRenderer_MissingFont(t *testing.T) {
	r := pdf.New(pdf.Options{FontPath: filepath.Join(t.TempDir(), "missing.ttf")})
	_, err := r.Users(nil)
	assert.Error(t, err)
}
