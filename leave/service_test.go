package leave_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-calendar/leave"
)

func TestService_BookRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t, leave.Options{})

	_, err := svc.Book(ctx, leave.Draft{
		Date:     d("2024-03-01"),
		EndDate:  dp("2024-03-10"),
		UserID:   "u1",
		Category: leave.CategoryDomestic,
	})
	assert.ErrorIs(t, err, leave.ErrValidation)

	all, err := s.AllBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	entries, err := s.ListHistory(ctx, leave.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_BookThenQuota(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	first, err := svc.Book(ctx, leave.Draft{Date: d("2024-03-05"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = svc.Book(ctx, leave.Draft{Date: d("2024-03-20"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic})
	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleMonthlyQuota, ve.Rule)

	_, err = svc.Book(ctx, leave.Draft{Date: d("2024-04-01"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic})
	assert.NoError(t, err)
}

func TestService_Edit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	mine, err := svc.Book(ctx, leave.Draft{Date: d("2024-03-05"), UserID: "u1", UserName: "A", Category: leave.CategoryDomestic})
	require.NoError(t, err)

	// Moving within the same month does not trip the quota on itself.
	updated, err := svc.Edit(ctx, mine.ID, leave.Updates{Date: dp("2024-03-20")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", updated.Date.String())
	require.NotNil(t, updated.UpdatedAt)

	// Moving onto a full day is rejected and leaves the booking alone.
	seed(t, svc, "u2", "2024-03-25", "", leave.CategoryDomestic)
	seed(t, svc, "u3", "2024-03-25", "", leave.CategoryDomestic)
	_, err = svc.Edit(ctx, mine.ID, leave.Updates{Date: dp("2024-03-25")})
	ve, ok := leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleCapacity, ve.Rule)

	got, err := svc.Ledger.Get(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", got.Date.String())

	// Stretching past the category limit is rejected.
	_, err = svc.Edit(ctx, mine.ID, leave.Updates{EndDate: dp("2024-03-28")})
	ve, ok = leave.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, leave.RuleMaxDays, ve.Rule)

	_, err = svc.Edit(ctx, "missing", leave.Updates{})
	assert.True(t, leave.IsNotFound(err))
}

func TestService_EditWindowBlocksPastBookings(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, leave.Options{})

	// testNow is 2024-03-01 in Bangkok.
	past := seed(t, svc, "u1", "2024-02-28", "", leave.CategoryDomestic)
	today := seed(t, svc, "u2", "2024-03-01", "", leave.CategoryDomestic)

	reason := "late change"
	_, err := svc.Edit(ctx, past.ID, leave.Updates{Reason: &reason})
	assert.ErrorIs(t, err, leave.ErrEditWindowClosed)

	err = svc.Cancel(ctx, past.ID)
	assert.ErrorIs(t, err, leave.ErrEditWindowClosed)
	assert.True(t, leave.IsClientError(err))

	_, err = svc.Edit(ctx, today.ID, leave.Updates{Reason: &reason})
	assert.NoError(t, err)
	assert.NoError(t, svc.Cancel(ctx, today.ID))

	_, err = svc.Ledger.Get(ctx, today.ID)
	assert.True(t, leave.IsNotFound(err))
	assert.True(t, leave.IsNotFound(svc.Cancel(ctx, today.ID)))
}

func TestService_ConcurrentBookingsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t, leave.Options{})

	// GIVEN: ten users racing for the same day
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, leave.Draft{
				Date:     d("2024-03-15"),
				UserID:   fmt.Sprintf("u%d", i),
				UserName: fmt.Sprintf("user %d", i),
				Category: leave.CategoryDomestic,
			})
		}(i)
	}
	wg.Wait()

	// THEN: validate+write is serialized, so exactly two win
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, leave.ErrValidation)
	}
	assert.Equal(t, leave.DailyCapacity, succeeded)

	onDay, err := s.BookingsCovering(ctx, d("2024-03-15"))
	require.NoError(t, err)
	assert.Len(t, onDay, leave.DailyCapacity)
}
