package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// CheckinGate validates an arrival against its reservation's 15-minute
// window and the table's physical occupancy. A check-in that finds the
// table still occupied is parked in the pending registry and resolved
// when the table frees up.
type CheckinGate struct {
	store    domain.Store
	registry domain.PendingRegistry
	notify   domain.NotifyScheduler
	logger   *zerolog.Logger
}

func NewCheckinGate(store domain.Store, registry domain.PendingRegistry, notify domain.NotifyScheduler, logger *zerolog.Logger) *CheckinGate {
	return &CheckinGate{store: store, registry: registry, notify: notify, logger: logger}
}

// Checkin moves a reservation to seated, once. Repeated calls after a
// successful check-in are idempotent and return the same table.
func (g *CheckinGate) Checkin(ctx context.Context, code string) (*models.CheckinResult, error) {
	r, err := g.store.GetReservationByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusActive {
		return nil, database.ErrAlreadyTerminal
	}

	// Повторный check-in: без побочных эффектов
	if r.CheckinTime != nil {
		billDue := r.CheckinTime.Add(models.BillDueAfter)
		return &models.CheckinResult{Outcome: models.CheckinOK, TableNumber: r.TableNumber, BillDueAt: &billDue}, nil
	}

	now := time.Now()
	if now.Before(r.ReservationTime) {
		return nil, ErrCheckinTooEarly
	}
	if now.After(r.ReservationTime.Add(models.CheckinWindow)) {
		return nil, ErrCheckinExpired
	}

	occupied, err := g.store.TableOccupied(ctx, r.TableNumber, r.ID)
	if err != nil {
		return nil, err
	}
	if occupied {
		pending := &models.PendingCheckin{
			TableNumber:      r.TableNumber,
			ReservationID:    r.ID,
			UserID:           r.UserID,
			ConfirmationCode: r.ConfirmationCode,
			CreatedAt:        now,
		}
		if err := g.registry.Put(ctx, pending); err != nil {
			return nil, fmt.Errorf("failed to register pending check-in: %w", err)
		}
		g.logger.Info().Str("code", code).Int64("table", r.TableNumber).Msg("check-in parked, table still occupied")
		return &models.CheckinResult{Outcome: models.CheckinPending, TableNumber: r.TableNumber}, nil
	}

	if err := g.store.SetCheckinTime(ctx, r.ID, now); err != nil {
		if errors.Is(err, database.ErrAlreadyTerminal) {
			// Проиграли гонку собственному повтору — перечитываем
			return g.Checkin(ctx, code)
		}
		return nil, err
	}

	billDue := now.Add(models.BillDueAfter)
	g.logger.Info().Str("code", code).Int64("table", r.TableNumber).Time("bill_due", billDue).Msg("guest checked in")
	return &models.CheckinResult{Outcome: models.CheckinOK, TableNumber: r.TableNumber, BillDueAt: &billDue}, nil
}

// ResolveFreedTable consumes a pending check-in parked on the table and
// tells the guest their table is now available.
func (g *CheckinGate) ResolveFreedTable(ctx context.Context, tableNumber int64) error {
	pending, err := g.registry.Get(ctx, tableNumber)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}

	if err := g.registry.Delete(ctx, tableNumber); err != nil {
		return err
	}

	if g.notify != nil {
		n := &models.ScheduledNotification{
			UserID:    pending.UserID,
			Channel:   models.ChannelSMS,
			Kind:      models.NotifyKindTableAvailable,
			Body:      fmt.Sprintf("Table %d is now available for reservation %s", tableNumber, pending.ConfirmationCode),
			DeliverAt: time.Now(),
			Status:    "pending",
		}
		if err := g.notify.Schedule(ctx, n); err != nil {
			g.logger.Error().Err(err).Int64("table", tableNumber).Msg("table-available notice failed")
		}
	}

	g.logger.Info().Int64("table", tableNumber).Str("code", pending.ConfirmationCode).Msg("pending check-in resolved")
	return nil
}
