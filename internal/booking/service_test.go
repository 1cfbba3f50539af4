package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmReq(date CalendarDate, slot TimeSlot, name, email string) ConfirmRequest {
	return ConfirmRequest{
		Name:    name,
		Email:   email,
		Phone:   "+91 98765 43210",
		Service: "General Consultation",
		Date:    date,
		Time:    slot,
		Message: "first visit",
	}
}

func TestConfirmAppointment_HappyPath(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	v, err := svc.ResolveSlot(ctx, wednesday(), "11:00 AM")
	require.NoError(t, err)
	require.True(t, v.Available)

	appt, err := svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "11:00 AM", "Meera Nair", "meera@example.com"))
	require.NoError(t, err)
	assert.Equal(t, AppointmentPending, appt.Status)
	assert.Equal(t, "2026-09-02", appt.Date.String())

	v, err = svc.ResolveSlot(ctx, wednesday(), "11:00 AM")
	require.NoError(t, err)
	assert.False(t, v.Available)
	assert.Equal(t, ReasonSlotTaken, v.Reason)
}

func TestConfirmAppointment_NoDoubleBookingUnderConcurrency(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const racers = 20
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("racer%d@example.com", i)
			_, errs[i] = svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "03:00 PM", "Racer", email))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrRaceLost):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer may claim the slot")
	assert.Equal(t, racers-1, losses)
}

func TestConfirmAppointment_Rejections(t *testing.T) {
	t.Run("past date", func(t *testing.T) {
		svc, _ := newTestService()
		past := NewCalendarDate(2026, time.August, 25, time.UTC)
		_, err := svc.ConfirmAppointment(context.Background(), confirmReq(past, "11:00 AM", "A", "a@example.com"))
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("closed weekday", func(t *testing.T) {
		svc, _ := newTestService()
		sunday := NewCalendarDate(2026, time.September, 6, time.UTC)
		_, err := svc.ConfirmAppointment(context.Background(), confirmReq(sunday, "11:00 AM", "A", "a@example.com"))
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("admin blocked", func(t *testing.T) {
		svc, repo := newTestService()
		repo.setBlocked(&BlockedDateEntry{Date: wednesday(), Active: true, Reason: "closed"})
		_, err := svc.ConfirmAppointment(context.Background(), confirmReq(wednesday(), "11:00 AM", "A", "a@example.com"))
		assert.ErrorIs(t, err, ErrAdminBlocked)
	})

	t.Run("slot taken by someone else's hold", func(t *testing.T) {
		svc, _ := newTestService()
		ctx := context.Background()
		_, err := svc.PlaceHold(ctx, wednesday(), "11:00 AM", HolderInfo{Name: "First", Email: "first@example.com"})
		require.NoError(t, err)

		_, err = svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "11:00 AM", "Second", "second@example.com"))
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("missing contact details", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.ConfirmAppointment(context.Background(), ConfirmRequest{Date: wednesday(), Time: "11:00 AM"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("store failure surfaces as retryable", func(t *testing.T) {
		svc, repo := newTestService()
		repo.failWith = errors.New("connection refused")
		_, err := svc.ConfirmAppointment(context.Background(), confirmReq(wednesday(), "11:00 AM", "A", "a@example.com"))
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestConfirmAppointment_PromotesOwnHold(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	hold, err := svc.PlaceHold(ctx, wednesday(), "11:00 AM", HolderInfo{Name: "Meera Nair", Email: "meera@example.com"})
	require.NoError(t, err)
	require.NotNil(t, hold.ExpiresAt)

	appt, err := svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "11:00 AM", "Meera Nair", "meera@example.com"))
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	var active []*SlotBooking
	for _, b := range repo.bookings {
		if b.Status == StatusActive && b.Date.Equal(wednesday()) && b.Time == "11:00 AM" {
			active = append(active, b)
		}
	}
	require.Len(t, active, 1, "promotion must not leave a second active row")
	assert.Equal(t, KindAppointment, active[0].Kind)
	assert.Nil(t, active[0].ExpiresAt, "a confirmed booking must never carry an expiry")
	require.NotNil(t, active[0].AppointmentID)
	assert.Equal(t, appt.ID, *active[0].AppointmentID)
}

func TestPlaceHold(t *testing.T) {
	t.Run("sets expiry from hold TTL", func(t *testing.T) {
		svc, _ := newTestService()
		hold, err := svc.PlaceHold(context.Background(), wednesday(), "11:00 AM", HolderInfo{Name: "A", Email: "a@example.com"})
		require.NoError(t, err)
		require.NotNil(t, hold.ExpiresAt)
		assert.Equal(t, testNow.Add(10*time.Minute), *hold.ExpiresAt)
	})

	t.Run("second hold on the same slot loses", func(t *testing.T) {
		svc, _ := newTestService()
		ctx := context.Background()
		_, err := svc.PlaceHold(ctx, wednesday(), "11:00 AM", HolderInfo{Name: "A", Email: "a@example.com"})
		require.NoError(t, err)

		_, err = svc.PlaceHold(ctx, wednesday(), "11:00 AM", HolderInfo{Name: "B", Email: "b@example.com"})
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("missing holder info is invalid input", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.PlaceHold(context.Background(), wednesday(), "11:00 AM", HolderInfo{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestSweepExpiredHolds(t *testing.T) {
	t.Run("expired hold frees the slot", func(t *testing.T) {
		svc, repo := newTestService()
		ctx := context.Background()

		_, err := repo.CreateHold(ctx, wednesday(), "11:00 AM", "A", "a@example.com", testNow.Add(-time.Second))
		require.NoError(t, err)

		released, err := svc.SweepExpiredHolds(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), released)

		_, err = repo.GetActiveBooking(ctx, wednesday(), "11:00 AM")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("idempotent", func(t *testing.T) {
		svc, repo := newTestService()
		ctx := context.Background()

		_, err := repo.CreateHold(ctx, wednesday(), "11:00 AM", "A", "a@example.com", testNow.Add(-time.Second))
		require.NoError(t, err)

		first, err := svc.SweepExpiredHolds(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), first)

		second, err := svc.SweepExpiredHolds(ctx)
		require.NoError(t, err)
		assert.Zero(t, second)
	})

	t.Run("never touches live holds or confirmed bookings", func(t *testing.T) {
		svc, _ := newTestService()
		ctx := context.Background()

		_, err := svc.PlaceHold(ctx, wednesday(), "11:00 AM", HolderInfo{Name: "A", Email: "a@example.com"})
		require.NoError(t, err)
		_, err = svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "11:30 AM", "B", "b@example.com"))
		require.NoError(t, err)

		released, err := svc.SweepExpiredHolds(ctx)
		require.NoError(t, err)
		assert.Zero(t, released)

		v, err := svc.ResolveSlot(ctx, wednesday(), "11:30 AM")
		require.NoError(t, err)
		assert.False(t, v.Available)
	})
}

func TestGetAppointment(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.ConfirmAppointment(ctx, confirmReq(wednesday(), "11:00 AM", "Meera Nair", "meera@example.com"))
	require.NoError(t, err)

	got, err := svc.GetAppointment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Meera Nair", got.Name)
}
