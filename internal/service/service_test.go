package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db        *database.DB
	hours     *HoursService
	finder    *Finder
	scheduler *Scheduler
}

func testRestaurantCfg() config.RestaurantConfig {
	hours := make(map[string]models.OpeningHours, 7)
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		hours[day] = models.OpeningHours{Open: "10:00", Close: "22:00"}
	}
	return config.RestaurantConfig{HorizonDays: 3, MaxAdvanceDays: 30, Hours: hours}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SyncTables(context.Background(), []models.Table{
		{Number: 1, Seats: 2, IsActive: true},
		{Number: 2, Seats: 4, IsActive: true},
		{Number: 3, Seats: 6, IsActive: true},
	}))

	hours := NewHoursService(db, testRestaurantCfg(), &logger)
	finder := NewFinder(db, hours, &logger)
	scheduler := NewScheduler(db, finder, nil, nil, time.Hour, 30, &logger)
	return &testEnv{db: db, hours: hours, finder: finder, scheduler: scheduler}
}

// futureDay is midnight UTC two days out: far enough for the advance rule,
// well inside the booking horizon.
func futureDay() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 2)
}

func futureStart() time.Time {
	return futureDay().Add(12 * time.Hour)
}

func seedFutureDay(t *testing.T, env *testEnv) {
	t.Helper()
	require.NoError(t, env.hours.SeedDay(context.Background(), futureDay()))
}

// seedNowWindow puts free cells around the current time so walk-in paths
// have a grid regardless of when the test runs.
func seedNowWindow(t *testing.T, env *testEnv) {
	t.Helper()
	slots := models.WindowSlots(models.AlignToSlot(time.Now()), models.ReservationSlots+2)
	require.NoError(t, env.db.SeedSlots(context.Background(), env.db.GetTables(), slots))
}

func busySlots(t *testing.T, env *testEnv, table int64) int {
	t.Helper()
	var n int
	err := env.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM table_slots WHERE table_number = ? AND free = 0`, table).Scan(&n)
	require.NoError(t, err)
	return n
}

func insertReservation(t *testing.T, env *testEnv, code string, table int64, guests int, start time.Time) *models.Reservation {
	t.Helper()
	r := &models.Reservation{
		ConfirmationCode: code,
		UserID:           100,
		UserRole:         "guest",
		Guests:           guests,
		ReservationTime:  start,
		TableNumber:      table,
		Status:           models.StatusActive,
		IsActive:         true,
	}
	require.NoError(t, env.db.CreateReservation(context.Background(), r))
	return r
}
