package leave_test

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
)

// 2024-03-01 10:00 in Bangkok.
var testNow = time.Date(2024, time.March, 1, 3, 0, 0, 0, time.UTC)

func fixedTestClock() calendar.Clock { return calendar.Fixed(testNow) }

func newTestService(t *testing.T, opts leave.Options) (*leave.Service, *memstore.TxMemory) {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = fixedTestClock()
	}
	s := memstore.NewTxMemory()
	return leave.NewService(s, opts), s
}

func d(s string) calendar.Date { return calendar.MustParse(s) }

func dp(s string) *calendar.Date {
	v := calendar.MustParse(s)
	return &v
}

// seed writes a booking through the ledger, skipping admission checks.
func seed(t *testing.T, svc *leave.Service, user, start, end string, c leave.Category) leave.Booking {
	t.Helper()
	draft := leave.Draft{Date: d(start), UserID: user, UserName: "name-" + user, Category: c}
	if end != "" {
		draft.EndDate = dp(end)
	}
	b, err := svc.Ledger.Create(context.Background(), draft)
	require.NoError(t, err)
	return b
}

func proposal(user, start, end string, c leave.Category) leave.Proposal {
	p := leave.Proposal{UserID: user, Start: d(start), Category: c}
	if end != "" {
		p.End = d(end)
	}
	return p
}

// =============================================================================
// MAX DURATION
// =============================================================================

func TestValidate_MaxDaysBoundary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	tests := []struct {
		name     string
		category leave.Category
		end      string
		wantOK   bool
		limit    int
		actual   int
	}{
		{"domestic 7 days", leave.CategoryDomestic, "2024-03-07", true, 0, 0},
		{"domestic 8 days", leave.CategoryDomestic, "2024-03-08", false, 7, 8},
		{"international 9 days", leave.CategoryInternational, "2024-03-09", true, 0, 0},
		{"international 10 days", leave.CategoryInternational, "2024-03-10", false, 9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(ctx, proposal("u1", "2024-03-01", tt.end, tt.category))
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			ve, ok := leave.AsValidationError(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, leave.RuleMaxDays, ve.Rule)
			assert.Equal(t, tt.limit, ve.Limit)
			assert.Equal(t, tt.actual, ve.Actual)
			assert.Contains(t, ve.Message, tt.category.Label())
		})
	}
}

func TestValidate_MaxDaysMessage(t *testing.T) {
	svc, _ := newTestService(t, leave.Options{})

	err := svc.Validate(context.Background(), proposal("u1", "2024-03-01", "2024-03-08", leave.CategoryDomestic))

	assert.EqualError(t, err, "ลาประเภทในประเทศสามารถลาสูงสุด 7 วัน (คุณลาทั้งหมด 8 วัน)")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

// =============================================================================
// CAPACITY
// =============================================================================

func TestValidate_CapacityCap(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	// GIVEN: two bookings of different categories and lengths cover 2024-03-10
	first := seed(t, svc, "u1", "2024-03-10", "", leave.CategoryDomestic)
	seed(t, svc, "u2", "2024-03-08", "2024-03-12", leave.CategoryInternational)

	// WHEN: a third user proposes a span touching that day
	err := svc.Validate(ctx, proposal("u3", "2024-03-10", "", leave.CategoryInternational))

	// THEN: it fails naming the date
	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleCapacity, ve.Rule)
	assert.Equal(t, "2024-03-10", ve.Date.String())
	assert.Equal(t, "วันที่ 2024-03-10 วันนี้มีการจองครบ 2 คนแล้ว", ve.Message)

	// AND: re-validating one of the two existing bookings against itself passes
	assert.NoError(t, svc.Validate(ctx, leave.ProposalFor(first)))
}

func TestValidate_CapacityNamesFirstFullDay(t *testing.T) {
	svc, _ := newTestService(t, leave.Options{})

	seed(t, svc, "u1", "2024-03-11", "2024-03-12", leave.CategoryDomestic)
	seed(t, svc, "u2", "2024-03-11", "2024-03-12", leave.CategoryDomestic)

	err := svc.Validate(context.Background(), proposal("u3", "2024-03-09", "2024-03-13", leave.CategoryDomestic))

	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-11", ve.Date.String())
	assert.Equal(t, 2, ve.Actual)
}

func TestValidate_OneExistingBookingLeavesRoom(t *testing.T) {
	svc, _ := newTestService(t, leave.Options{})
	seed(t, svc, "u1", "2024-03-10", "", leave.CategoryDomestic)

	assert.NoError(t, svc.Validate(context.Background(), proposal("u2", "2024-03-10", "", leave.CategoryDomestic)))
}

// =============================================================================
// MONTHLY QUOTA
// =============================================================================

func TestValidate_MonthlyQuota(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	existing := seed(t, svc, "u1", "2024-03-05", "", leave.CategoryDomestic)

	err := svc.Validate(ctx, proposal("u1", "2024-03-20", "", leave.CategoryDomestic))
	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleMonthlyQuota, ve.Rule)
	assert.Equal(t, "เดือนนี้คุณได้ขอลาแล้ว (1 เดือนสามารถขอลาได้เพียง 1 ครั้ง)", ve.Message)

	assert.NoError(t, svc.Validate(ctx, proposal("u1", "2024-04-01", "", leave.CategoryDomestic)), "next month is free")
	assert.NoError(t, svc.Validate(ctx, proposal("u2", "2024-03-20", "", leave.CategoryDomestic)), "other users unaffected")

	// Editing the existing booking within March does not trip on itself.
	edit := proposal("u1", "2024-03-21", "", leave.CategoryDomestic)
	edit.ExcludeID = existing.ID
	assert.NoError(t, svc.Validate(ctx, edit))
}

func TestValidate_MonthlyQuotaCountsStartDateOnly(t *testing.T) {
	svc, _ := newTestService(t, leave.Options{})

	// Starts in March, runs into April.
	seed(t, svc, "u1", "2024-03-29", "2024-04-02", leave.CategoryDomestic)

	assert.NoError(t, svc.Validate(context.Background(), proposal("u1", "2024-04-10", "", leave.CategoryDomestic)))
}

func TestValidate_CheckOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	seed(t, svc, "u1", "2024-03-10", "", leave.CategoryDomestic)
	seed(t, svc, "u2", "2024-03-10", "", leave.CategoryDomestic)
	seed(t, svc, "u3", "2024-03-02", "", leave.CategoryDomestic)

	// Too long AND over capacity AND over quota: max days reported.
	err := svc.Validate(ctx, proposal("u3", "2024-03-04", "2024-03-12", leave.CategoryDomestic))
	ve, _ := leave.AsValidationError(err)
	require.NotNil(t, ve)
	assert.Equal(t, leave.RuleMaxDays, ve.Rule)

	// Over capacity AND over quota: capacity reported.
	err = svc.Validate(ctx, proposal("u3", "2024-03-09", "2024-03-11", leave.CategoryDomestic))
	ve, _ = leave.AsValidationError(err)
	require.NotNil(t, ve)
	assert.Equal(t, leave.RuleCapacity, ve.Rule)
}

func TestValidate_MalformedInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	err := svc.Validate(ctx, proposal("u1", "2024-03-01", "", leave.Category("sabbatical")))
	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleCategory, ve.Rule)

	err = svc.Validate(ctx, proposal("u1", "2024-03-05", "2024-03-01", leave.CategoryDomestic))
	ve, ok = leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleRange, ve.Rule)
}

// =============================================================================
// EDIT WINDOW
// =============================================================================

func TestValidateCanEdit(t *testing.T) {
	// 2024-03-05 20:00 UTC = 2024-03-06 03:00 Bangkok.
	clock := calendar.Fixed(time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC))
	v := leave.NewValidator(memstore.NewMemory(), clock, calendar.Bangkok())

	err := v.ValidateCanEdit(d("2024-03-05"))
	var ew *leave.EditWindowError
	require.ErrorAs(t, err, &ew)
	assert.Equal(t, "ไม่สามารถแก้ไขการจองที่ผ่านวันไปแล้ว", ew.Error())
	assert.Equal(t, "2024-03-06", ew.Today.String())

	assert.NoError(t, v.ValidateCanEdit(d("2024-03-06")), "today")
	assert.NoError(t, v.ValidateCanEdit(d("2024-03-07")), "tomorrow")
}

// =============================================================================
// RESULT
// =============================================================================

func TestCheck(t *testing.T) {
	r, err := leave.Check(nil)
	require.NoError(t, err)
	assert.Equal(t, leave.Result{Valid: true}, r)

	r, err = leave.Check(&leave.ValidationError{Rule: leave.RuleCapacity, Message: "full"})
	require.NoError(t, err)
	assert.Equal(t, leave.Result{Valid: false, Error: "full"}, r)

	boom := errors.New("boom")
	_, err = leave.Check(boom)
	assert.ErrorIs(t, err, boom)
}
