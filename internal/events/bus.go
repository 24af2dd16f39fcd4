// Package events provides an in-process publish/subscribe bus for run and
// catalog notifications.
package events

import (
	"sync"
	"time"
)

// EventType identifies an event
type EventType string

const (
	RunStarted       EventType = "RUN_STARTED"
	RunProgress      EventType = "RUN_PROGRESS"
	RunCompleted     EventType = "RUN_COMPLETED"
	RunFailed        EventType = "RUN_FAILED"
	CatalogRefreshed EventType = "CATALOG_REFRESHED"
)

// AllTypes lists every event type the bus carries.
var AllTypes = []EventType{RunStarted, RunProgress, RunCompleted, RunFailed, CatalogRefreshed}

// Event is a published event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Handler receives events. Handlers run on the publisher's goroutine and
// must not block; buffer and drop instead.
type Handler func(*Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]subscription)}
}

// Subscribe registers handler for eventType and returns a function that
// removes it. The returned function is safe to call more than once.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(eventType, id) })
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event to every subscriber of its type
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[eventType]))
	for i, s := range b.subs[eventType] {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of handlers registered for eventType
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
