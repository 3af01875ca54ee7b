package models

import "time"

type Reservation struct {
	ID               int64      `json:"id"`
	ConfirmationCode string     `json:"confirmation_code"`
	UserID           int64      `json:"user_id"`
	UserRole         string     `json:"user_role"`
	Guests           int        `json:"guests"`
	ReservationTime  time.Time  `json:"reservation_time"`
	TableNumber      int64      `json:"table_number"`
	Status           string     `json:"status"` // active, finished, cancelled
	IsActive         bool       `json:"is_active"`
	CheckinTime      *time.Time `json:"checkin_time,omitempty"`
	CheckoutTime     *time.Time `json:"checkout_time,omitempty"`
	ReminderAt       *time.Time `json:"reminder_at,omitempty"`
	ReminderSent     bool       `json:"reminder_sent"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// WindowEnd returns the end of the reservation's two-hour window.
func (r *Reservation) WindowEnd() time.Time {
	return r.ReservationTime.Add(time.Duration(ReservationSlots) * SlotDuration)
}

const (
	CheckinOK      = "ok"
	CheckinPending = "pending"
)

// CheckinResult is the outcome of a check-in attempt. TableNumber is
// zero until a table is actually assigned; BillDueAt is set only on a
// successful seat.
type CheckinResult struct {
	Outcome     string     `json:"outcome"`
	TableNumber int64      `json:"table_number,omitempty"`
	BillDueAt   *time.Time `json:"bill_due_at,omitempty"`
}
