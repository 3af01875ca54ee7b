package service

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// HoursService is the opening-hours provider: it translates the per-weekday
// config into concrete slot times and keeps the grid seeded for the rolling
// horizon.
type HoursService struct {
	store  domain.Store
	cfg    config.RestaurantConfig
	logger *zerolog.Logger
}

func NewHoursService(store domain.Store, cfg config.RestaurantConfig, logger *zerolog.Logger) *HoursService {
	return &HoursService{store: store, cfg: cfg, logger: logger}
}

// OpenCloseFor resolves the opening window of date's weekday onto the date
// itself, in UTC. ok is false on closed days.
func (s *HoursService) OpenCloseFor(date time.Time) (open, close time.Time, ok bool) {
	hours := s.cfg.HoursFor(date)
	if hours.Closed() {
		return time.Time{}, time.Time{}, false
	}

	openClock, err := time.Parse("15:04", hours.Open)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	closeClock, err := time.Parse("15:04", hours.Close)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	day := date.UTC()
	open = time.Date(day.Year(), day.Month(), day.Day(), openClock.Hour(), openClock.Minute(), 0, 0, time.UTC)
	close = time.Date(day.Year(), day.Month(), day.Day(), closeClock.Hour(), closeClock.Minute(), 0, 0, time.UTC)
	return open, close, true
}

// SlotsForDay returns every slot start between open and close. The last
// cell begins one slot width before closing.
func (s *HoursService) SlotsForDay(date time.Time) []time.Time {
	open, close, ok := s.OpenCloseFor(date)
	if !ok {
		return nil
	}

	var slots []time.Time
	for t := models.AlignToSlot(open); t.Add(models.SlotDuration).Compare(close) <= 0; t = t.Add(models.SlotDuration) {
		slots = append(slots, t)
	}
	return slots
}

// LastWindowStart returns the latest start time at which a full
// reservation window still ends by closing.
func (s *HoursService) LastWindowStart(date time.Time) (time.Time, bool) {
	_, close, ok := s.OpenCloseFor(date)
	if !ok {
		return time.Time{}, false
	}
	return close.Add(-time.Duration(models.ReservationSlots) * models.SlotDuration), true
}

// SeedDay inserts missing grid cells for one day. Existing cells keep
// their occupancy.
func (s *HoursService) SeedDay(ctx context.Context, date time.Time) error {
	slots := s.SlotsForDay(date)
	if len(slots) == 0 {
		return nil
	}
	if err := s.store.SeedSlots(ctx, s.store.GetTables(), slots); err != nil {
		return fmt.Errorf("failed to seed day %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

// SeedHorizon seeds the grid for days consecutive days starting at from.
func (s *HoursService) SeedHorizon(ctx context.Context, from time.Time, days int) error {
	for i := 0; i < days; i++ {
		if err := s.SeedDay(ctx, from.AddDate(0, 0, i)); err != nil {
			return err
		}
	}
	if s.logger != nil {
		s.logger.Info().Int("days", days).Msg("slot grid seeded")
	}
	return nil
}

// PurgePast drops grid cells behind the current slot (horizon rollover).
func (s *HoursService) PurgePast(ctx context.Context) (int64, error) {
	return s.store.PurgeSlotsBefore(ctx, models.AlignToSlot(time.Now()))
}

// ReservationCanceller is the slice of the scheduler ReseedDay needs to
// evict reservations invalidated by an hours change.
type ReservationCanceller interface {
	Cancel(ctx context.Context, code string) error
}

// ReseedDay re-seeds one day after an opening-hours change and cancels
// Active reservations whose window no longer fits the new hours.
func (s *HoursService) ReseedDay(ctx context.Context, date time.Time, canceller ReservationCanceller) error {
	if err := s.SeedDay(ctx, date); err != nil {
		return err
	}

	open, close, ok := s.OpenCloseFor(date)
	day := date.UTC().Truncate(24 * time.Hour)

	var stranded []*models.Reservation
	var err error
	if !ok {
		// День стал выходным: слетают все активные брони этого дня
		stranded, err = s.store.ListActiveOutsideHours(ctx, day, day.AddDate(0, 0, 1), day)
	} else {
		stranded, err = s.store.ListActiveOutsideHours(ctx, day, open, close)
	}
	if err != nil {
		return err
	}

	for _, r := range stranded {
		if cancelErr := canceller.Cancel(ctx, r.ConfirmationCode); cancelErr != nil {
			s.logger.Error().Err(cancelErr).Str("code", r.ConfirmationCode).Msg("failed to cancel stranded reservation")
		}
	}

	if len(stranded) > 0 && s.logger != nil {
		s.logger.Warn().Int("cancelled", len(stranded)).Str("date", date.Format("2006-01-02")).
			Msg("reservations cancelled after opening-hours change")
	}
	return nil
}
