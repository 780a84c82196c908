// Package events provides in-process pub/sub for scheduler lifecycle
// notices. The core emits events as inert data; listeners (billing,
// notifications) are wired by the caller.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the scheduling core.
const (
	SeriesCreated      = "series.created"
	SeriesPaused       = "series.paused"
	SeriesResumed      = "series.resumed"
	SeriesCancelled    = "series.cancelled"
	SeriesExtended     = "series.extended"
	SeriesGenerated    = "series.generated"
	ReservationCreated  = "reservation.created"
	ReservationSkipped  = "reservation.skipped"
	ReservationCanceled = "reservation.canceled"
)

// Event is a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to an event. Handlers run synchronously; the caller
// decides the concurrency model.
type Handler func(event Event) error

// Bus provides in-process pub/sub keyed by event type.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event's type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		_ = handler(event)
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}
