package domain

import (
	"context"
	"time"

	"tablebook/internal/models"
)

// Store is the persistence surface of the scheduling engine. *database.DB
// implements it; services depend on this interface so tests can substitute
// mocks for the conflict paths that are hard to produce against sqlite.
type Store interface {
	// Slot grid
	SeedSlots(ctx context.Context, tables []models.Table, slots []time.Time) error
	TryAcquireSlot(ctx context.Context, tableNumber int64, slot time.Time) error
	ReleaseSlot(ctx context.Context, tableNumber int64, slot time.Time) error
	SlotFree(ctx context.Context, tableNumber int64, slot time.Time) (bool, error)
	IsFreeForWindow(ctx context.Context, tableNumber int64, start time.Time, slotCount int) (bool, error)
	FreeTablesForWindow(ctx context.Context, start time.Time, slotCount int) ([]int64, error)
	PurgeSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSlotsForTable(ctx context.Context, tableNumber int64) error

	// Tables (cache-backed, see database.SyncTables)
	GetTables() []models.Table
	TableByNumber(number int64) (models.Table, bool)
	SyncTables(ctx context.Context, tables []models.Table) error
	DeactivateTable(ctx context.Context, number int64) error

	// Reservations
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error)
	TerminateReservation(ctx context.Context, id int64, status string, checkout *time.Time) error
	SetCheckinTime(ctx context.Context, id int64, checkin time.Time) error
	UpdateReservationTable(ctx context.Context, id, tableNumber int64) error
	MarkReminderScheduled(ctx context.Context, id int64, reminderAt time.Time) error
	ListActiveForTableFrom(ctx context.Context, tableNumber int64, from time.Time) ([]*models.Reservation, error)
	ListNoShows(ctx context.Context, cutoff time.Time) ([]*models.Reservation, error)
	TableOccupied(ctx context.Context, tableNumber int64, excludeReservationID int64) (bool, error)
	ListActiveOutsideHours(ctx context.Context, dayStart, open, close time.Time) ([]*models.Reservation, error)

	// Waiting list
	CreateWaitingEntry(ctx context.Context, e *models.WaitingEntry) error
	GetWaitingByCode(ctx context.Context, code string) (*models.WaitingEntry, error)
	OldestWaitingForCapacity(ctx context.Context, seats int) (*models.WaitingEntry, error)
	SetWaitingOffer(ctx context.Context, id, tableNumber int64, freedAt time.Time) error
	SetWaitingStatus(ctx context.Context, id int64, status string) error
	ListExpiredOffers(ctx context.Context, cutoff time.Time) ([]*models.WaitingEntry, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.ScheduledNotification) error
	GetDueNotifications(ctx context.Context, limit int) ([]models.ScheduledNotification, error)
	UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// PendingRegistry parks check-ins whose table is still physically
// occupied by the previous party. Entries are keyed by table number; a
// table holds at most one pending record.
type PendingRegistry interface {
	Put(ctx context.Context, pending *models.PendingCheckin) error
	Get(ctx context.Context, tableNumber int64) (*models.PendingCheckin, error)
	Delete(ctx context.Context, tableNumber int64) error
	List(ctx context.Context) ([]*models.PendingCheckin, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationSender delivers one message over an external channel (SMS,
// email). The worker owns retries; implementations just send once.
type NotificationSender interface {
	Send(ctx context.Context, n *models.ScheduledNotification) error
}

// NotifyScheduler queues outbound notifications for asynchronous delivery.
type NotifyScheduler interface {
	Schedule(ctx context.Context, n *models.ScheduledNotification) error
}

type FinderService interface {
	FindTableAt(ctx context.Context, guests int, start time.Time) (*models.Table, error)
	FindTableForWindow(ctx context.Context, guests int, start time.Time) (*models.Table, error)
	AvailableStartTimes(ctx context.Context, guests int, day time.Time) ([]time.Time, error)
}

type SchedulerService interface {
	Create(ctx context.Context, userID int64, userRole string, guests int, start time.Time) (*models.Reservation, []time.Time, error)
	Cancel(ctx context.Context, code string) error
	Finish(ctx context.Context, code string) error
	RelocateForDeletedTable(ctx context.Context, tableNumber int64) error
	AutoCancelNoShows(ctx context.Context) (int, error)
}

type CheckinService interface {
	Checkin(ctx context.Context, code string) (*models.CheckinResult, error)
	ResolveFreedTable(ctx context.Context, tableNumber int64) error
}

type WaitlistService interface {
	JoinNow(ctx context.Context, userID int64, guests int) (*models.WaitingEntry, *models.Reservation, error)
	HandleTableFreed(ctx context.Context, tableNumber int64, freedAt time.Time) error
	ConfirmArrival(ctx context.Context, code string) (*models.Reservation, error)
	Leave(ctx context.Context, code string) error
	SweepExpiredOffers(ctx context.Context) (int, error)
}
