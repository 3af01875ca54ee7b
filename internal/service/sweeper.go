package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs the periodic maintenance passes on one ticker: no-show
// cancellation, waiting-offer expiry, and grid horizon upkeep. All passes
// are safe concurrently with live booking traffic.
type Sweeper struct {
	scheduler   *Scheduler
	waitlist    *Waitlist
	hours       *HoursService
	horizonDays int
	interval    time.Duration
	logger      *zerolog.Logger
}

func NewSweeper(scheduler *Scheduler, waitlist *Waitlist, hours *HoursService, horizonDays int, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		scheduler:   scheduler,
		waitlist:    waitlist,
		hours:       hours,
		horizonDays: horizonDays,
		interval:    interval,
		logger:      logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one maintenance pass. Exposed for tests and for the
// initial pass at startup.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if cancelled, err := s.scheduler.AutoCancelNoShows(ctx); err != nil {
		s.logger.Error().Err(err).Msg("no-show sweep failed")
	} else if cancelled > 0 {
		s.logger.Info().Int("cancelled", cancelled).Msg("no-shows cancelled")
	}

	if swept, err := s.waitlist.SweepExpiredOffers(ctx); err != nil {
		s.logger.Error().Err(err).Msg("waiting-offer sweep failed")
	} else if swept > 0 {
		s.logger.Info().Int("swept", swept).Msg("expired offers cancelled")
	}

	if err := s.hours.SeedHorizon(ctx, time.Now(), s.horizonDays); err != nil {
		s.logger.Error().Err(err).Msg("horizon seeding failed")
	}
	if purged, err := s.hours.PurgePast(ctx); err != nil {
		s.logger.Error().Err(err).Msg("slot purge failed")
	} else if purged > 0 {
		s.logger.Debug().Int64("purged", purged).Msg("past slots purged")
	}
}
