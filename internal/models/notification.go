package models

import "time"

const (
	NotifyKindReminder       = "reservation_reminder"
	NotifyKindCancelled      = "reservation_cancelled"
	NotifyKindTableAvailable = "table_available"
	NotifyKindWaitingOffer   = "waiting_offer"
	NotifyKindWaitingExpired = "waiting_expired"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// ScheduledNotification is a durable "deliver this at T" row consumed by
// the dispatch worker. Delivery itself is external; the engine only
// schedules and retries.
type ScheduledNotification struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Channel     string     `json:"channel"`
	Kind        string     `json:"kind"`
	Body        string     `json:"body"`
	DeliverAt   time.Time  `json:"deliver_at"`
	Status      string     `json:"status"` // pending, retry, delivered, failed
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
