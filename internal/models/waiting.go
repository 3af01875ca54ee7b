package models

import "time"

type WaitingEntry struct {
	ID               int64      `json:"id"`
	ConfirmationCode string     `json:"confirmation_code"`
	UserID           int64      `json:"user_id"`
	Guests           int        `json:"guests"`
	Status           string     `json:"status"` // waiting, seated, cancelled
	TableFreedTime   *time.Time `json:"table_freed_time,omitempty"`
	TableNumber      *int64     `json:"table_number,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasOffer reports whether a freed table has been offered to this entry.
func (e *WaitingEntry) HasOffer() bool {
	return e.TableFreedTime != nil && e.TableNumber != nil
}

// PendingCheckin is a check-in request parked because the assigned table
// was still physically occupied. Ephemeral; at most one per table.
type PendingCheckin struct {
	TableNumber      int64     `json:"table_number"`
	ReservationID    int64     `json:"reservation_id"`
	UserID           int64     `json:"user_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	CreatedAt        time.Time `json:"created_at"`
}
