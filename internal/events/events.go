package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationFinished  = "reservation_finished"
	EventReservationRelocated = "reservation_relocated"
	EventTableFreed           = "table_freed"
	EventWaitingOffered       = "waiting_offered"
	EventWaitingSeated        = "waiting_seated"
)

// ReservationEventPayload describes the minimal reservation snapshot for
// event consumers.
type ReservationEventPayload struct {
	ReservationID    int64     `json:"reservation_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	UserID           int64     `json:"user_id"`
	TableNumber      int64     `json:"table_number"`
	Guests           int       `json:"guests"`
	Status           string    `json:"status"`
	ReservationTime  time.Time `json:"reservation_time"`
}

// TableFreedPayload is emitted whenever a table's two-hour window is
// released back to the grid.
type TableFreedPayload struct {
	TableNumber int64     `json:"table_number"`
	FreedAt     time.Time `json:"freed_at"`
}

// WaitingEventPayload describes a waiting-list entry transition.
type WaitingEventPayload struct {
	EntryID          int64  `json:"entry_id"`
	ConfirmationCode string `json:"confirmation_code"`
	UserID           int64  `json:"user_id"`
	Guests           int    `json:"guests"`
	TableNumber      int64  `json:"table_number,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
