// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// AllEvents subscribes to every event type
const AllEvents model.EventType = "*"

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.PrinterEvent
	events      chan model.PrinterEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	done        chan struct{}
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.PrinterEvent),
		events:      make(chan model.PrinterEvent, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	defer close(eb.done)
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Stop stops accepting events and waits for pending ones to be delivered.
// Subscriber channels are closed afterwards.
func (eb *EventBus) Stop() {
	eb.mutex.Lock()
	if eb.events == nil {
		eb.mutex.Unlock()
		return
	}
	close(eb.events)
	eb.mutex.Unlock()
	<-eb.done

	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	for _, subs := range eb.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	eb.subscribers = make(map[model.EventType][]chan model.PrinterEvent)
	eb.events = nil
}

// Publish publishes an event without blocking
func (eb *EventBus) Publish(event model.PrinterEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	if eb.events == nil {
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("printer_id", event.PrinterID),
		)
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents
func (eb *EventBus) Subscribe(eventType model.EventType) <-chan model.PrinterEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.PrinterEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes and closes a channel returned by Subscribe
func (eb *EventBus) Unsubscribe(eventType model.EventType, ch <-chan model.PrinterEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.PrinterEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, key := range []model.EventType{event.EventType, AllEvents} {
		for _, subscriber := range eb.subscribers[key] {
			select {
			case subscriber <- event:
			default:
				// Subscriber is slow, skip
			}
		}
	}
}
