// Package events provides the in-process event bus used to surface pipeline
// progress and lifecycle events to subscribers (e.g., the SSE stream).
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a kind of event on the bus.
type EventType string

// Event types emitted by the screener pipeline.
const (
	RunStarted         EventType = "RunStarted"
	RunCompleted       EventType = "RunCompleted"
	RunFailed          EventType = "RunFailed"
	ScreenFetched      EventType = "ScreenFetched"
	EnrichmentProgress EventType = "EnrichmentProgress"
)

// Event is a single occurrence published on the bus.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler receives published events. Handlers must not block; slow consumers
// should buffer on their side.
type Handler func(event *Event)

// Bus is a minimal publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler for all events and returns an unsubscribe
// function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Emit publishes an event to all subscribers.
func (b *Bus) Emit(eventType EventType, data interface{}) {
	event := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
