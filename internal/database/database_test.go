package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(io.Discard)
	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testTables() []models.Table {
	return []models.Table{
		{Number: 1, Seats: 2, IsActive: true},
		{Number: 2, Seats: 4, IsActive: true},
		{Number: 3, Seats: 6, IsActive: true},
	}
}

func TestSyncTables_UpsertsAndCaches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SyncTables(ctx, testTables()))

	tables := db.GetTables()
	require.Len(t, tables, 3)
	assert.Equal(t, int64(1), tables[0].Number)
	assert.Equal(t, 4, tables[1].Seats)

	got, ok := db.TableByNumber(2)
	require.True(t, ok)
	assert.Equal(t, 4, got.Seats)
}

func TestSyncTables_DeactivatesRemoved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SyncTables(ctx, testTables()))
	require.NoError(t, db.SyncTables(ctx, testTables()[:2]))

	tables := db.GetTables()
	assert.Len(t, tables, 2)

	var active bool
	err := db.QueryRowContext(ctx, `SELECT is_active FROM restaurant_tables WHERE number = 3`).Scan(&active)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSyncTables_SeatChangeSurvivesResync(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SyncTables(ctx, testTables()))

	updated := testTables()
	updated[0].Seats = 8
	require.NoError(t, db.SyncTables(ctx, updated))

	got, ok := db.TableByNumber(1)
	require.True(t, ok)
	assert.Equal(t, 8, got.Seats)
}

func TestDeactivateTable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SyncTables(ctx, testTables()))
	require.NoError(t, db.DeactivateTable(ctx, 2))

	tables := db.GetTables()
	assert.Len(t, tables, 2)
	for _, table := range tables {
		assert.NotEqual(t, int64(2), table.Number)
	}
}

// seedGrid puts slotCount free cells per table starting at start.
func seedGrid(t *testing.T, db *DB, start time.Time, slotCount int) {
	t.Helper()
	slots := make([]time.Time, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		slots = append(slots, start.Add(time.Duration(i)*models.SlotDuration))
	}
	require.NoError(t, db.SeedSlots(context.Background(), db.GetTables(), slots))
}
