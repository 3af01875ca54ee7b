package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridStart() time.Time {
	return time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC)
}

func TestTryAcquireSlot_Exclusive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 4)

	slot := gridStart()
	require.NoError(t, db.TryAcquireSlot(ctx, 1, slot))

	// Занятая ячейка не захватывается повторно
	err := db.TryAcquireSlot(ctx, 1, slot)
	assert.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, db.ReleaseSlot(ctx, 1, slot))
	assert.NoError(t, db.TryAcquireSlot(ctx, 1, slot))
}

func TestTryAcquireSlot_UnseededCell(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))

	err := db.TryAcquireSlot(ctx, 1, gridStart())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTryAcquireSlot_ExactlyOneWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 1)

	const callers = 20
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.TryAcquireSlot(ctx, 1, gridStart()); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent caller must win the slot")
}

func TestSeedSlots_PreservesOccupancy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 2)

	require.NoError(t, db.TryAcquireSlot(ctx, 1, gridStart()))

	// Повторный посев не освобождает занятые ячейки
	seedGrid(t, db, gridStart(), 2)

	free, err := db.SlotFree(ctx, 1, gridStart())
	require.NoError(t, err)
	assert.False(t, free)
}

func TestSeedSlots_SkipsInactiveTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tables := testTables()
	tables[2].IsActive = false
	require.NoError(t, db.SyncTables(ctx, tables))
	require.NoError(t, db.SeedSlots(ctx, tables, []time.Time{gridStart()}))

	_, err := db.SlotFree(ctx, 3, gridStart())
	assert.Error(t, err)
}

func TestIsFreeForWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 4)

	free, err := db.IsFreeForWindow(ctx, 1, gridStart(), models.ReservationSlots)
	require.NoError(t, err)
	assert.True(t, free)

	require.NoError(t, db.TryAcquireSlot(ctx, 1, gridStart().Add(models.SlotDuration)))

	free, err = db.IsFreeForWindow(ctx, 1, gridStart(), models.ReservationSlots)
	require.NoError(t, err)
	assert.False(t, free)
}

func TestIsFreeForWindow_UnseededTailCountsAsBusy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 2) // only half the window exists

	free, err := db.IsFreeForWindow(ctx, 1, gridStart(), models.ReservationSlots)
	require.NoError(t, err)
	assert.False(t, free)
}

func TestFreeTablesForWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 4)

	numbers, err := db.FreeTablesForWindow(ctx, gridStart(), models.ReservationSlots)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, numbers)

	// Стол 1 выпадает после захвата одной ячейки окна
	require.NoError(t, db.TryAcquireSlot(ctx, 1, gridStart().Add(3*models.SlotDuration)))

	numbers, err = db.FreeTablesForWindow(ctx, gridStart(), models.ReservationSlots)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, numbers)
}

func TestPurgeSlotsBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 4)

	purged, err := db.PurgeSlotsBefore(ctx, gridStart().Add(2*models.SlotDuration))
	require.NoError(t, err)
	assert.Equal(t, int64(6), purged) // 2 slots × 3 tables

	_, err = db.SlotFree(ctx, 1, gridStart())
	assert.Error(t, err)
}

func TestDeleteSlotsForTable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SyncTables(ctx, testTables()))
	seedGrid(t, db, gridStart(), 4)

	require.NoError(t, db.DeleteSlotsForTable(ctx, 1))

	_, err := db.SlotFree(ctx, 1, gridStart())
	assert.Error(t, err)

	free, err := db.SlotFree(ctx, 2, gridStart())
	require.NoError(t, err)
	assert.True(t, free)
}
