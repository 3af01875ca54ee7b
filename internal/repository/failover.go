package repository

import (
	"context"
	"sync/atomic"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverPendingRegistry serves from redis while it is healthy and drops
// to the in-memory registry when it is not, retrying redis once a minute.
type FailoverPendingRegistry struct {
	primary   domain.PendingRegistry
	fallback  domain.PendingRegistry
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverPendingRegistry(primary, fallback domain.PendingRegistry, logger *zerolog.Logger) *FailoverPendingRegistry {
	return &FailoverPendingRegistry{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverPendingRegistry) Put(ctx context.Context, pending *models.PendingCheckin) error {
	if !r.isDown.Load() {
		err := r.primary.Put(ctx, pending)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary pending registry failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Put(ctx, pending)
}

func (r *FailoverPendingRegistry) Get(ctx context.Context, tableNumber int64) (*models.PendingCheckin, error) {
	if !r.isDown.Load() {
		pending, err := r.primary.Get(ctx, tableNumber)
		if err == nil {
			return pending, nil
		}
		r.logger.Error().Err(err).Msg("Primary pending registry failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		pending, err := r.primary.Get(ctx, tableNumber)
		if err == nil {
			r.isDown.Store(false)
			return pending, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.Get(ctx, tableNumber)
}

func (r *FailoverPendingRegistry) Delete(ctx context.Context, tableNumber int64) error {
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, tableNumber)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary pending registry failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Delete(ctx, tableNumber)
}

func (r *FailoverPendingRegistry) List(ctx context.Context) ([]*models.PendingCheckin, error) {
	if !r.isDown.Load() {
		pendings, err := r.primary.List(ctx)
		if err == nil {
			return pendings, nil
		}
		r.logger.Error().Err(err).Msg("Primary pending registry failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.List(ctx)
}
