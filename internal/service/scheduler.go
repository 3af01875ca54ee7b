package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TableFreedHandler receives the freed-table hook after cancel/finish.
type TableFreedHandler interface {
	HandleTableFreed(ctx context.Context, tableNumber int64, freedAt time.Time) error
}

// FreedTableResolver consumes a pending check-in parked on the table.
type FreedTableResolver interface {
	ResolveFreedTable(ctx context.Context, tableNumber int64) error
}

// Scheduler owns the reservation state machine: Active → Finished or
// Cancelled, both terminal. Every multi-slot acquisition that fails
// part-way releases what it took before returning.
type Scheduler struct {
	store          domain.Store
	finder         *Finder
	eventBus       domain.EventPublisher
	notify         domain.NotifyScheduler
	minAdvance     time.Duration
	maxAdvanceDays int
	logger         *zerolog.Logger

	// freed-table hooks, bound after construction (см. cmd/api)
	freedMatcher  TableFreedHandler
	freedResolver FreedTableResolver
}

func NewScheduler(store domain.Store, finder *Finder, eventBus domain.EventPublisher, notify domain.NotifyScheduler, minAdvance time.Duration, maxAdvanceDays int, logger *zerolog.Logger) *Scheduler {
	if minAdvance <= 0 {
		minAdvance = models.DefaultMinAdvance
	}
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return &Scheduler{
		store:          store,
		finder:         finder,
		eventBus:       eventBus,
		notify:         notify,
		minAdvance:     minAdvance,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

// BindFreedHooks wires the waiting-list matcher and the check-in gate
// into the freed-table path. Done post-construction because the matcher
// itself needs the scheduler.
func (s *Scheduler) BindFreedHooks(matcher TableFreedHandler, resolver FreedTableResolver) {
	s.freedMatcher = matcher
	s.freedResolver = resolver
}

// NewConfirmationCode returns a short, human-presentable unique code.
func NewConfirmationCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func (s *Scheduler) validateTime(start time.Time) error {
	now := time.Now()
	if start.Before(now.Add(s.minAdvance)) {
		return database.ErrPastDate
	}
	if start.After(now.AddDate(0, 0, s.maxAdvanceDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

// Create books a two-hour window. On any conflict it returns alternative
// start times for the same day from the requested time onward, alongside
// the sentinel error.
func (s *Scheduler) Create(ctx context.Context, userID int64, userRole string, guests int, start time.Time) (*models.Reservation, []time.Time, error) {
	if guests <= 0 {
		return nil, nil, ErrInvalidGuests
	}
	start = models.AlignToSlot(start)
	if err := s.validateTime(start); err != nil {
		return nil, nil, err
	}

	r, err := s.createAt(ctx, userID, userRole, guests, start, NewConfirmationCode(), nil)
	if err != nil {
		if errors.Is(err, database.ErrNoTable) || errors.Is(err, database.ErrSlotTaken) {
			return nil, s.alternatives(ctx, guests, start), err
		}
		return nil, nil, err
	}

	s.scheduleReminder(ctx, r)
	return r, nil, nil
}

// CreateWalkIn books from the next half-hour boundary without the
// advance-notice rule. Used for immediate seating of walk-ins.
func (s *Scheduler) CreateWalkIn(ctx context.Context, userID int64, guests int, start time.Time, code string) (*models.Reservation, error) {
	return s.createAt(ctx, userID, "walk-in", guests, models.NextSlotStart(start), code, nil)
}

// CreateAtTable books a specific table, bypassing the finder. Used when a
// waiting-list offer is confirmed.
func (s *Scheduler) CreateAtTable(ctx context.Context, userID int64, guests int, tableNumber int64, start time.Time, code string) (*models.Reservation, error) {
	return s.createAt(ctx, userID, "walk-in", guests, models.NextSlotStart(start), code, &tableNumber)
}

// createAt is the shared acquisition path: pick a table (unless pinned),
// acquire the window slot by slot, persist, roll everything back on any
// failure in between.
func (s *Scheduler) createAt(ctx context.Context, userID int64, userRole string, guests int, start time.Time, code string, pinnedTable *int64) (*models.Reservation, error) {
	var tableNumber int64
	if pinnedTable != nil {
		tableNumber = *pinnedTable
	} else {
		table, err := s.finder.FindTableForWindow(ctx, guests, start)
		if err != nil {
			return nil, err
		}
		tableNumber = table.Number
	}

	acquired, err := s.acquireWindow(ctx, tableNumber, start)
	if err != nil {
		s.releaseSlots(ctx, tableNumber, acquired)
		metrics.IncSlotConflict()
		return nil, err
	}

	reservation := &models.Reservation{
		ConfirmationCode: code,
		UserID:           userID,
		UserRole:         userRole,
		Guests:           guests,
		ReservationTime:  start,
		TableNumber:      tableNumber,
		Status:           models.StatusActive,
		IsActive:         true,
	}
	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		// Бронь не записана — возвращаем все захваченные слоты
		s.releaseSlots(ctx, tableNumber, acquired)
		return nil, fmt.Errorf("failed to persist reservation: %w", err)
	}

	metrics.IncReservation("created")
	s.publishReservationEvent(events.EventReservationCreated, reservation)
	s.logger.Info().Str("code", reservation.ConfirmationCode).Int64("table", tableNumber).
		Time("start", start).Int("guests", guests).Msg("reservation created")
	return reservation, nil
}

// acquireWindow claims the window's slots in sequence and returns the
// slots it managed to take; on error the caller must release them.
func (s *Scheduler) acquireWindow(ctx context.Context, tableNumber int64, start time.Time) ([]time.Time, error) {
	var acquired []time.Time
	for _, slot := range models.WindowSlots(start, models.ReservationSlots) {
		if err := s.store.TryAcquireSlot(ctx, tableNumber, slot); err != nil {
			return acquired, err
		}
		acquired = append(acquired, slot)
	}
	return acquired, nil
}

func (s *Scheduler) releaseSlots(ctx context.Context, tableNumber int64, slots []time.Time) {
	for _, slot := range slots {
		if err := s.store.ReleaseSlot(ctx, tableNumber, slot); err != nil {
			s.logger.Error().Err(err).Int64("table", tableNumber).Time("slot", slot).Msg("rollback release failed")
		}
	}
}

func (s *Scheduler) alternatives(ctx context.Context, guests int, from time.Time) []time.Time {
	var times []time.Time
	for t := range s.finder.StartTimes(ctx, from, guests, from) {
		times = append(times, t)
	}
	return times
}

// Cancel releases a reservation's window and marks it Cancelled. The
// state-guarded update runs first, so a duplicate cancel fails with
// ErrAlreadyTerminal before touching any slot.
func (s *Scheduler) Cancel(ctx context.Context, code string) error {
	return s.terminate(ctx, code, models.StatusCancelled)
}

// Finish is Cancel's twin for a completed visit; it stamps checkoutTime.
func (s *Scheduler) Finish(ctx context.Context, code string) error {
	return s.terminate(ctx, code, models.StatusFinished)
}

func (s *Scheduler) terminate(ctx context.Context, code, status string) error {
	r, err := s.store.GetReservationByCode(ctx, code)
	if err != nil {
		return err
	}

	var checkout *time.Time
	if status == models.StatusFinished {
		now := time.Now()
		checkout = &now
	}

	if err := s.store.TerminateReservation(ctx, r.ID, status, checkout); err != nil {
		return err
	}

	s.releaseSlots(ctx, r.TableNumber, models.WindowSlots(r.ReservationTime, models.ReservationSlots))

	if status == models.StatusCancelled {
		metrics.IncReservation("cancelled")
		s.publishReservationEvent(events.EventReservationCancelled, r)
		s.scheduleNotice(ctx, r.UserID, models.NotifyKindCancelled,
			fmt.Sprintf("Reservation %s has been cancelled", r.ConfirmationCode))
	} else {
		metrics.IncReservation("finished")
		s.publishReservationEvent(events.EventReservationFinished, r)
	}

	s.tableFreed(ctx, r.TableNumber)
	s.logger.Info().Str("code", code).Str("status", status).Int64("table", r.TableNumber).Msg("reservation terminated")
	return nil
}

// tableFreed runs the freed-table hooks: pending check-ins first, then
// the waiting list, then the event for external consumers.
func (s *Scheduler) tableFreed(ctx context.Context, tableNumber int64) {
	now := time.Now()

	if s.freedResolver != nil {
		if err := s.freedResolver.ResolveFreedTable(ctx, tableNumber); err != nil {
			s.logger.Error().Err(err).Int64("table", tableNumber).Msg("pending check-in resolution failed")
		}
	}
	if s.freedMatcher != nil {
		if err := s.freedMatcher.HandleTableFreed(ctx, tableNumber, now); err != nil {
			s.logger.Error().Err(err).Int64("table", tableNumber).Msg("waiting list match failed")
		}
	}

	if s.eventBus != nil {
		payload := events.TableFreedPayload{TableNumber: tableNumber, FreedAt: now}
		if err := s.eventBus.PublishJSON(events.EventTableFreed, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish table_freed error")
		}
	}
}

// RelocateForDeletedTable moves every future Active reservation off a
// table being taken out of service. The alternate window is acquired
// before the original is released; if anything fails in between, the
// partial acquisition is rolled back and the original stays locked. With
// no alternate table, the reservation is cancelled through Cancel.
func (s *Scheduler) RelocateForDeletedTable(ctx context.Context, tableNumber int64) error {
	reservations, err := s.store.ListActiveForTableFrom(ctx, tableNumber, time.Now())
	if err != nil {
		return err
	}

	for _, r := range reservations {
		if s.relocateOne(ctx, r, tableNumber) {
			continue
		}
		if err := s.Cancel(ctx, r.ConfirmationCode); err != nil && !errors.Is(err, database.ErrAlreadyTerminal) {
			s.logger.Error().Err(err).Str("code", r.ConfirmationCode).Msg("failed to cancel during table deletion")
		}
	}

	if err := s.store.DeactivateTable(ctx, tableNumber); err != nil {
		return err
	}
	return s.store.DeleteSlotsForTable(ctx, tableNumber)
}

func (s *Scheduler) relocateOne(ctx context.Context, r *models.Reservation, fromTable int64) bool {
	for _, t := range s.finder.candidates(r.Guests) {
		if t.Number == fromTable {
			continue
		}

		acquired, err := s.acquireWindow(ctx, t.Number, r.ReservationTime)
		if err != nil {
			s.releaseSlots(ctx, t.Number, acquired)
			continue
		}

		if err := s.store.UpdateReservationTable(ctx, r.ID, t.Number); err != nil {
			// Оригинальные слоты не тронуты; откатываем только новые
			s.releaseSlots(ctx, t.Number, acquired)
			s.logger.Error().Err(err).Str("code", r.ConfirmationCode).Msg("relocation persist failed")
			return false
		}

		s.releaseSlots(ctx, fromTable, models.WindowSlots(r.ReservationTime, models.ReservationSlots))
		metrics.IncReservation("relocated")

		relocated := *r
		relocated.TableNumber = t.Number
		s.publishReservationEvent(events.EventReservationRelocated, &relocated)
		s.logger.Info().Str("code", r.ConfirmationCode).Int64("from", fromTable).Int64("to", t.Number).Msg("reservation relocated")
		return true
	}
	return false
}

// AutoCancelNoShows cancels Active reservations with no check-in 15
// minutes past their start. Reuses Cancel so slots can never be released
// twice.
func (s *Scheduler) AutoCancelNoShows(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-models.CheckinWindow)
	noShows, err := s.store.ListNoShows(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, r := range noShows {
		if err := s.Cancel(ctx, r.ConfirmationCode); err != nil {
			if !errors.Is(err, database.ErrAlreadyTerminal) {
				s.logger.Error().Err(err).Str("code", r.ConfirmationCode).Msg("no-show cancel failed")
			}
			continue
		}
		metrics.IncReservation("no_show")
		cancelled++
	}
	return cancelled, nil
}

func (s *Scheduler) scheduleReminder(ctx context.Context, r *models.Reservation) {
	if s.notify == nil {
		return
	}
	reminderAt := r.ReservationTime.Add(-models.ReminderLead)
	if reminderAt.Before(time.Now()) {
		return
	}

	n := &models.ScheduledNotification{
		UserID:    r.UserID,
		Channel:   models.ChannelSMS,
		Kind:      models.NotifyKindReminder,
		Body:      fmt.Sprintf("Reminder: reservation %s at %s, table %d", r.ConfirmationCode, r.ReservationTime.Format("15:04"), r.TableNumber),
		DeliverAt: reminderAt,
		Status:    "pending",
	}
	if err := s.notify.Schedule(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("code", r.ConfirmationCode).Msg("reminder scheduling failed")
		return
	}
	if err := s.store.MarkReminderScheduled(ctx, r.ID, reminderAt); err != nil {
		s.logger.Error().Err(err).Str("code", r.ConfirmationCode).Msg("reminder mark failed")
	}
}

func (s *Scheduler) scheduleNotice(ctx context.Context, userID int64, kind, body string) {
	if s.notify == nil {
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
	if err := s.notify.Schedule(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("notice scheduling failed")
	}
}

func (s *Scheduler) publishReservationEvent(eventType string, r *models.Reservation) {
	if s.eventBus == nil {
		return
	}
	payload := events.ReservationEventPayload{
		ReservationID:    r.ID,
		ConfirmationCode: r.ConfirmationCode,
		UserID:           r.UserID,
		TableNumber:      r.TableNumber,
		Guests:           r.Guests,
		Status:           r.Status,
		ReservationTime:  r.ReservationTime,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}
