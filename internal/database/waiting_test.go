package database

import (
	"context"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWaitingEntry(code string, guests int) *models.WaitingEntry {
	return &models.WaitingEntry{
		ConfirmationCode: code,
		UserID:           200,
		Guests:           guests,
		Status:           models.WaitingStatusWaiting,
	}
}

func TestCreateAndGetWaitingEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := newWaitingEntry("WT0001", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, e))
	require.NotZero(t, e.ID)

	got, err := db.GetWaitingByCode(ctx, "WT0001")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, models.WaitingStatusWaiting, got.Status)
	assert.Nil(t, got.TableFreedTime)
	assert.Nil(t, got.TableNumber)

	_, err = db.GetWaitingByCode(ctx, "WT9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOldestWaitingForCapacity_FIFO(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := newWaitingEntry("WT0010", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, first))
	second := newWaitingEntry("WT0011", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, second))

	got, err := db.OldestWaitingForCapacity(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestOldestWaitingForCapacity_SkipsTooLarge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Первая в очереди группа не помещается — стол достаётся следующей
	big := newWaitingEntry("WT0020", 6)
	require.NoError(t, db.CreateWaitingEntry(ctx, big))
	small := newWaitingEntry("WT0021", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, small))

	got, err := db.OldestWaitingForCapacity(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, small.ID, got.ID)
}

func TestOldestWaitingForCapacity_SkipsEntriesWithOffer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	offered := newWaitingEntry("WT0030", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, offered))
	require.NoError(t, db.SetWaitingOffer(ctx, offered.ID, 5, time.Now()))

	plain := newWaitingEntry("WT0031", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, plain))

	got, err := db.OldestWaitingForCapacity(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, plain.ID, got.ID)
}

func TestOldestWaitingForCapacity_Empty(t *testing.T) {
	db := newTestDB(t)

	_, err := db.OldestWaitingForCapacity(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetWaitingOffer(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := newWaitingEntry("WT0040", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, e))

	freedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.SetWaitingOffer(ctx, e.ID, 7, freedAt))

	got, err := db.GetWaitingByCode(ctx, "WT0040")
	require.NoError(t, err)
	require.NotNil(t, got.TableNumber)
	assert.Equal(t, int64(7), *got.TableNumber)
	require.NotNil(t, got.TableFreedTime)
	assert.WithinDuration(t, freedAt, *got.TableFreedTime, time.Second)
}

func TestSetWaitingStatus_Guarded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := newWaitingEntry("WT0050", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, e))

	require.NoError(t, db.SetWaitingStatus(ctx, e.ID, models.WaitingStatusSeated))

	err := db.SetWaitingStatus(ctx, e.ID, models.WaitingStatusCancelled)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	err = db.SetWaitingOffer(ctx, e.ID, 3, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestListExpiredOffers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stale := newWaitingEntry("WT0060", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, stale))
	require.NoError(t, db.SetWaitingOffer(ctx, stale.ID, 1, time.Now().Add(-30*time.Minute)))

	fresh := newWaitingEntry("WT0061", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, fresh))
	require.NoError(t, db.SetWaitingOffer(ctx, fresh.ID, 2, time.Now()))

	noOffer := newWaitingEntry("WT0062", 2)
	require.NoError(t, db.CreateWaitingEntry(ctx, noOffer))

	expired, err := db.ListExpiredOffers(ctx, time.Now().Add(-models.WaitingConfirmWindow))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}
