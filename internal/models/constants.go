package models

import "time"

const (
	StatusActive    = "active"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

const (
	WaitingStatusWaiting   = "waiting"
	WaitingStatusSeated    = "seated"
	WaitingStatusCancelled = "cancelled"
)

const (
	// SlotDuration is the width of one grid cell.
	SlotDuration = 30 * time.Minute

	// ReservationSlots is the number of consecutive cells a standard
	// two-hour reservation occupies.
	ReservationSlots = 4
)

const (
	// DefaultHorizonDays длина скользящего горизонта сетки слотов
	DefaultHorizonDays = 30

	// DefaultMinAdvance минимальное время до начала брони
	DefaultMinAdvance = time.Hour

	// DefaultMaxAdvanceDays максимальная дальность брони
	DefaultMaxAdvanceDays = 30

	// CheckinWindow окно прибытия после начала брони
	CheckinWindow = 15 * time.Minute

	// WaitingConfirmWindow окно подтверждения после предложения стола
	WaitingConfirmWindow = 15 * time.Minute

	// ReminderLead за сколько до начала брони отправляется напоминание
	ReminderLead = 2 * time.Hour

	// BillDueAfter срок выставления счёта после посадки
	BillDueAfter = 2 * time.Hour

	// DefaultSweepInterval период фоновых зачисток
	DefaultSweepInterval = time.Minute

	// DefaultRedisTTL время жизни записей реестра в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 1000
)

// SlotTimeFormat is how slot times are stored in sqlite (always UTC).
const SlotTimeFormat = "2006-01-02 15:04"

// AlignToSlot truncates t down to the slot boundary.
func AlignToSlot(t time.Time) time.Time {
	return t.UTC().Truncate(SlotDuration)
}

// NextSlotStart rounds t up to the next slot boundary. A time exactly
// on a boundary is returned unchanged.
func NextSlotStart(t time.Time) time.Time {
	aligned := AlignToSlot(t)
	if aligned.Equal(t.UTC()) {
		return aligned
	}
	return aligned.Add(SlotDuration)
}

// WindowSlots returns the slot start times of the window beginning at start.
func WindowSlots(start time.Time, count int) []time.Time {
	slots := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		slots = append(slots, AlignToSlot(start).Add(time.Duration(i)*SlotDuration))
	}
	return slots
}
