package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// reservationOps is the slice of the scheduler the matcher needs: walk-in
// creation for immediate seating, pinned-table creation for confirmed
// offers, and cancel for withdrawals.
type reservationOps interface {
	CreateWalkIn(ctx context.Context, userID int64, guests int, start time.Time, code string) (*models.Reservation, error)
	CreateAtTable(ctx context.Context, userID int64, guests int, tableNumber int64, start time.Time, code string) (*models.Reservation, error)
	Cancel(ctx context.Context, code string) error
}

// Waitlist matches freed tables to waiting parties: strict FIFO filtered
// by capacity, 15-minute confirmation window per offer.
type Waitlist struct {
	store    domain.Store
	reserver reservationOps
	eventBus domain.EventPublisher
	notify   domain.NotifyScheduler
	logger   *zerolog.Logger
}

func NewWaitlist(store domain.Store, reserver reservationOps, eventBus domain.EventPublisher, notify domain.NotifyScheduler, logger *zerolog.Logger) *Waitlist {
	return &Waitlist{
		store:    store,
		reserver: reserver,
		eventBus: eventBus,
		notify:   notify,
		logger:   logger,
	}
}

// JoinNow persists a Waiting entry, then attempts immediate seating from
// the next half-hour slot. Walk-ins bypass the advance-notice rule. When
// seating succeeds the entry goes straight to Seated and the created
// reservation is returned; otherwise the entry stays Waiting.
func (w *Waitlist) JoinNow(ctx context.Context, userID int64, guests int) (*models.WaitingEntry, *models.Reservation, error) {
	if guests <= 0 {
		return nil, nil, ErrInvalidGuests
	}

	entry := &models.WaitingEntry{
		ConfirmationCode: NewConfirmationCode(),
		UserID:           userID,
		Guests:           guests,
		Status:           models.WaitingStatusWaiting,
	}
	if err := w.store.CreateWaitingEntry(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to join waiting list: %w", err)
	}

	reservation, err := w.reserver.CreateWalkIn(ctx, userID, guests, time.Now(), entry.ConfirmationCode)
	if err != nil {
		if errors.Is(err, database.ErrNoTable) || errors.Is(err, database.ErrSlotTaken) {
			w.logger.Info().Str("code", entry.ConfirmationCode).Int("guests", guests).Msg("no immediate seat, entry waits")
			return entry, nil, nil
		}
		return nil, nil, err
	}

	if err := w.seat(ctx, entry, reservation.TableNumber); err != nil {
		return nil, nil, err
	}
	entry.Status = models.WaitingStatusSeated
	w.logger.Info().Str("code", entry.ConfirmationCode).Int64("table", reservation.TableNumber).Msg("walk-in seated immediately")
	return entry, reservation, nil
}

// HandleTableFreed offers a just-freed table to the earliest-created
// Waiting entry that fits it. Only stamps the offer; the reservation is
// created by ConfirmArrival.
func (w *Waitlist) HandleTableFreed(ctx context.Context, tableNumber int64, freedAt time.Time) error {
	table, ok := w.store.TableByNumber(tableNumber)
	if !ok || !table.IsActive {
		return nil
	}

	entry, err := w.store.OldestWaitingForCapacity(ctx, table.Seats)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.store.SetWaitingOffer(ctx, entry.ID, tableNumber, freedAt); err != nil {
		if errors.Is(err, database.ErrAlreadyTerminal) {
			return nil
		}
		return err
	}

	metrics.IncWaitlistMatch()
	w.publishWaitingEvent(events.EventWaitingOffered, entry, tableNumber)
	w.scheduleNotice(ctx, entry.UserID, models.NotifyKindWaitingOffer,
		fmt.Sprintf("Table %d is available, confirm within %d minutes", tableNumber, int(models.WaitingConfirmWindow.Minutes())))
	w.logger.Info().Int64("entry", entry.ID).Int64("table", tableNumber).Msg("freed table offered")
	return nil
}

// ConfirmArrival converts an offered entry into a real reservation at the
// next half-hour boundary. A lapsed window cancels the entry; a stolen
// window leaves the entry Waiting with its offer for the sweep to expire.
func (w *Waitlist) ConfirmArrival(ctx context.Context, code string) (*models.Reservation, error) {
	entry, err := w.store.GetWaitingByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.WaitingStatusWaiting {
		return nil, database.ErrAlreadyTerminal
	}
	if !entry.HasOffer() {
		return nil, ErrNoOffer
	}

	if time.Now().After(entry.TableFreedTime.Add(models.WaitingConfirmWindow)) {
		if err := w.store.SetWaitingStatus(ctx, entry.ID, models.WaitingStatusCancelled); err != nil && !errors.Is(err, database.ErrAlreadyTerminal) {
			return nil, err
		}
		w.scheduleNotice(ctx, entry.UserID, models.NotifyKindWaitingExpired, "Confirmation window expired, the table was released")
		return nil, ErrOfferExpired
	}

	reservation, err := w.reserver.CreateAtTable(ctx, entry.UserID, entry.Guests, *entry.TableNumber, time.Now(), entry.ConfirmationCode)
	if err != nil {
		return nil, err
	}

	if err := w.seat(ctx, entry, reservation.TableNumber); err != nil {
		return nil, err
	}
	w.logger.Info().Str("code", code).Int64("table", reservation.TableNumber).Msg("waiting entry confirmed and seated")
	return reservation, nil
}

func (w *Waitlist) seat(ctx context.Context, entry *models.WaitingEntry, tableNumber int64) error {
	if !entry.HasOffer() {
		if err := w.store.SetWaitingOffer(ctx, entry.ID, tableNumber, time.Now()); err != nil && !errors.Is(err, database.ErrAlreadyTerminal) {
			return err
		}
	}
	if err := w.store.SetWaitingStatus(ctx, entry.ID, models.WaitingStatusSeated); err != nil {
		return err
	}
	w.publishWaitingEvent(events.EventWaitingSeated, entry, tableNumber)
	return nil
}

// Leave withdraws a Waiting entry and cancels any reservation created
// under the same confirmation code.
func (w *Waitlist) Leave(ctx context.Context, code string) error {
	entry, err := w.store.GetWaitingByCode(ctx, code)
	if err != nil {
		return err
	}

	if err := w.store.SetWaitingStatus(ctx, entry.ID, models.WaitingStatusCancelled); err != nil {
		return err
	}

	if err := w.reserver.Cancel(ctx, code); err != nil {
		if !errors.Is(err, database.ErrNotFound) && !errors.Is(err, database.ErrAlreadyTerminal) {
			return err
		}
	}

	w.logger.Info().Str("code", code).Msg("waiting entry withdrawn")
	return nil
}

// SweepExpiredOffers cancels entries whose confirmation window lapsed,
// along with any reservation linked to them.
func (w *Waitlist) SweepExpiredOffers(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-models.WaitingConfirmWindow)
	expired, err := w.store.ListExpiredOffers(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, entry := range expired {
		if err := w.store.SetWaitingStatus(ctx, entry.ID, models.WaitingStatusCancelled); err != nil {
			if !errors.Is(err, database.ErrAlreadyTerminal) {
				w.logger.Error().Err(err).Int64("entry", entry.ID).Msg("offer expiry failed")
			}
			continue
		}
		if err := w.reserver.Cancel(ctx, entry.ConfirmationCode); err != nil {
			if !errors.Is(err, database.ErrNotFound) && !errors.Is(err, database.ErrAlreadyTerminal) {
				w.logger.Error().Err(err).Str("code", entry.ConfirmationCode).Msg("linked reservation cancel failed")
			}
		}
		w.scheduleNotice(ctx, entry.UserID, models.NotifyKindWaitingExpired, "Confirmation window expired, the table was released")
		swept++
	}
	return swept, nil
}

func (w *Waitlist) scheduleNotice(ctx context.Context, userID int64, kind, body string) {
	if w.notify == nil {
		return
	}
	n := &models.ScheduledNotification{
		UserID:    userID,
		Channel:   models.ChannelSMS,
		Kind:      kind,
		Body:      body,
		DeliverAt: time.Now(),
		Status:    "pending",
	}
	if err := w.notify.Schedule(ctx, n); err != nil {
		w.logger.Error().Err(err).Str("kind", kind).Msg("notice scheduling failed")
	}
}

func (w *Waitlist) publishWaitingEvent(eventType string, entry *models.WaitingEntry, tableNumber int64) {
	if w.eventBus == nil {
		return
	}
	payload := events.WaitingEventPayload{
		EntryID:          entry.ID,
		ConfirmationCode: entry.ConfirmationCode,
		UserID:           entry.UserID,
		Guests:           entry.Guests,
		TableNumber:      tableNumber,
	}
	if err := w.eventBus.PublishJSON(eventType, payload); err != nil {
		w.logger.Error().Err(err).Str("event_type", eventType).Int64("entry_id", entry.ID).Msg("publish event error")
	}
}
