package service

import (
	"context"
	"testing"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWaitlist(t *testing.T, env *testEnv) *Waitlist {
	t.Helper()
	logger := zerolog.Nop()
	return NewWaitlist(env.db, env.scheduler, nil, nil, &logger)
}

func createWaitingEntry(t *testing.T, env *testEnv, code string, guests int) *models.WaitingEntry {
	t.Helper()
	e := &models.WaitingEntry{
		ConfirmationCode: code,
		UserID:           200,
		Guests:           guests,
		Status:           models.WaitingStatusWaiting,
	}
	require.NoError(t, env.db.CreateWaitingEntry(context.Background(), e))
	return e
}

func TestJoinNow_SeatsImmediately(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	seedNowWindow(t, env)
	ctx := context.Background()

	entry, reservation, err := wl.JoinNow(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.Equal(t, int64(1), reservation.TableNumber)
	assert.Equal(t, "walk-in", reservation.UserRole)
	assert.Equal(t, entry.ConfirmationCode, reservation.ConfirmationCode)
	assert.Equal(t, models.WaitingStatusSeated, entry.Status)

	got, err := env.db.GetWaitingByCode(ctx, entry.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusSeated, got.Status)
	require.NotNil(t, got.TableNumber)
	assert.Equal(t, int64(1), *got.TableNumber)
}

func TestJoinNow_WaitsWhenNoTable(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	// Сетка пуста — немедленная посадка невозможна
	entry, reservation, err := wl.JoinNow(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, reservation)
	assert.Equal(t, models.WaitingStatusWaiting, entry.Status)

	got, err := env.db.GetWaitingByCode(ctx, entry.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusWaiting, got.Status)
	assert.Nil(t, got.TableNumber)
}

func TestJoinNow_InvalidGuests(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)

	_, _, err := wl.JoinNow(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidGuests)
}

func TestHandleTableFreed_FIFO(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	first := createWaitingEntry(t, env, "WAIT0001", 2)
	second := createWaitingEntry(t, env, "WAIT0002", 2)

	require.NoError(t, wl.HandleTableFreed(ctx, 2, time.Now()))

	got, err := env.db.GetWaitingByCode(ctx, first.ConfirmationCode)
	require.NoError(t, err)
	require.NotNil(t, got.TableNumber)
	assert.Equal(t, int64(2), *got.TableNumber)

	got, err = env.db.GetWaitingByCode(ctx, second.ConfirmationCode)
	require.NoError(t, err)
	assert.Nil(t, got.TableNumber)
}

func TestHandleTableFreed_CapacityFilter(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	// Первая группа не помещается за двухместный стол
	big := createWaitingEntry(t, env, "WAITBIG1", 6)
	small := createWaitingEntry(t, env, "WAITSML1", 2)

	require.NoError(t, wl.HandleTableFreed(ctx, 1, time.Now()))

	got, err := env.db.GetWaitingByCode(ctx, big.ConfirmationCode)
	require.NoError(t, err)
	assert.Nil(t, got.TableNumber)

	got, err = env.db.GetWaitingByCode(ctx, small.ConfirmationCode)
	require.NoError(t, err)
	require.NotNil(t, got.TableNumber)
	assert.Equal(t, int64(1), *got.TableNumber)
}

func TestHandleTableFreed_InactiveTable(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	entry := createWaitingEntry(t, env, "WAIT0010", 2)
	require.NoError(t, env.db.DeactivateTable(ctx, 1))

	require.NoError(t, wl.HandleTableFreed(ctx, 1, time.Now()))

	got, err := env.db.GetWaitingByCode(ctx, entry.ConfirmationCode)
	require.NoError(t, err)
	assert.Nil(t, got.TableNumber)
}

func TestHandleTableFreed_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)

	assert.NoError(t, wl.HandleTableFreed(context.Background(), 2, time.Now()))
}

func TestConfirmArrival_SeatsAtOfferedTable(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	seedNowWindow(t, env)
	ctx := context.Background()

	entry := createWaitingEntry(t, env, "OFFER001", 3)
	require.NoError(t, env.db.SetWaitingOffer(ctx, entry.ID, 2, time.Now()))

	reservation, err := wl.ConfirmArrival(ctx, "OFFER001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reservation.TableNumber)
	assert.Equal(t, "OFFER001", reservation.ConfirmationCode)

	got, err := env.db.GetWaitingByCode(ctx, "OFFER001")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusSeated, got.Status)

	assert.Equal(t, models.ReservationSlots, busySlots(t, env, 2))
}

func TestConfirmArrival_ExpiredOffer(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	entry := createWaitingEntry(t, env, "OFFER002", 2)
	require.NoError(t, env.db.SetWaitingOffer(ctx, entry.ID, 1, time.Now().Add(-20*time.Minute)))

	_, err := wl.ConfirmArrival(ctx, "OFFER002")
	assert.ErrorIs(t, err, ErrOfferExpired)

	got, err := env.db.GetWaitingByCode(ctx, "OFFER002")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusCancelled, got.Status)
}

func TestConfirmArrival_NoOffer(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)

	createWaitingEntry(t, env, "OFFER003", 2)

	_, err := wl.ConfirmArrival(context.Background(), "OFFER003")
	assert.ErrorIs(t, err, ErrNoOffer)
}

func TestConfirmArrival_TerminalEntry(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	entry := createWaitingEntry(t, env, "OFFER004", 2)
	require.NoError(t, env.db.SetWaitingStatus(ctx, entry.ID, models.WaitingStatusCancelled))

	_, err := wl.ConfirmArrival(ctx, "OFFER004")
	assert.ErrorIs(t, err, database.ErrAlreadyTerminal)
}

func TestLeave_CancelsLinkedReservation(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	seedNowWindow(t, env)
	ctx := context.Background()

	entry := createWaitingEntry(t, env, "LEAVE001", 2)
	reservation, err := env.scheduler.CreateWalkIn(ctx, entry.UserID, entry.Guests, time.Now(), entry.ConfirmationCode)
	require.NoError(t, err)

	require.NoError(t, wl.Leave(ctx, "LEAVE001"))

	got, err := env.db.GetWaitingByCode(ctx, "LEAVE001")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusCancelled, got.Status)

	linked, err := env.db.GetReservationByCode(ctx, "LEAVE001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, linked.Status)
	assert.Equal(t, 0, busySlots(t, env, reservation.TableNumber))
}

func TestLeave_WithoutReservation(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	createWaitingEntry(t, env, "LEAVE002", 2)

	require.NoError(t, wl.Leave(ctx, "LEAVE002"))

	got, err := env.db.GetWaitingByCode(ctx, "LEAVE002")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusCancelled, got.Status)
}

func TestSweepExpiredOffers(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	ctx := context.Background()

	stale := createWaitingEntry(t, env, "SWEEP001", 2)
	require.NoError(t, env.db.SetWaitingOffer(ctx, stale.ID, 1, time.Now().Add(-30*time.Minute)))

	fresh := createWaitingEntry(t, env, "SWEEP002", 2)
	require.NoError(t, env.db.SetWaitingOffer(ctx, fresh.ID, 2, time.Now()))

	swept, err := wl.SweepExpiredOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := env.db.GetWaitingByCode(ctx, "SWEEP001")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusCancelled, got.Status)

	got, err = env.db.GetWaitingByCode(ctx, "SWEEP002")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingStatusWaiting, got.Status)
}

func TestCancelOffersFreedTableToWaitlist(t *testing.T) {
	env := newTestEnv(t)
	wl := newWaitlist(t, env)
	env.scheduler.BindFreedHooks(wl, nil)
	seedFutureDay(t, env)
	ctx := context.Background()

	r, _, err := env.scheduler.Create(ctx, 1, "guest", 5, futureStart())
	require.NoError(t, err)
	require.Equal(t, int64(3), r.TableNumber)

	entry := createWaitingEntry(t, env, "HOOK0001", 4)

	require.NoError(t, env.scheduler.Cancel(ctx, r.ConfirmationCode))

	got, err := env.db.GetWaitingByCode(ctx, entry.ConfirmationCode)
	require.NoError(t, err)
	require.NotNil(t, got.TableNumber)
	assert.Equal(t, int64(3), *got.TableNumber)
	require.NotNil(t, got.TableFreedTime)
}
