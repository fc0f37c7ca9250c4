// Package events provides the notification bus for blocking state changes.
// Observers (status bars, activity logs, webhooks) subscribe here; the bus is
// never required for correctness of blocking itself.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventResourceBlocked - a resource gained its first or an additional blocking operation
	EventResourceBlocked EventType = "resource_blocked"
	// EventResourceUnblocked - an operation released a resource (the resource may
	// still be blocked by other operations)
	EventResourceUnblocked EventType = "resource_unblocked"
	// EventOperationStarted - an operation transitioned from inactive to active
	EventOperationStarted EventType = "operation_started"
	// EventOperationEnded - an active operation ended and released its targets
	EventOperationEnded EventType = "operation_ended"
	// EventBlockingStateChanged - a resource's effective enabled/disabled flag changed
	EventBlockingStateChanged EventType = "blocking_state_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ResourceEvent reports a per-resource blocking transition
// (resource_blocked / resource_unblocked).
type ResourceEvent struct {
	BaseEvent
	ResourceID string
	Operation  string // operation identifier that caused the transition
	Group      string // group that fanned out to this resource, empty for direct blocks
}

// OperationEvent reports an operation lifecycle transition
// (operation_started / operation_ended).
type OperationEvent struct {
	BaseEvent
	Operation   string
	ResourceIDs []string // resolved affected resources at start/end time
	Groups      []string // group identifiers named by the starter
}

// StateChangedEvent reports that a resource's effective enabled flag flipped.
// Emitted on the first block and on the last unblock, not on reference-count
// changes in between.
type StateChangedEvent struct {
	BaseEvent
	ResourceID string
	Operation  string
	Blocked    bool
}

// Bus manages event subscriptions and publishing
type Bus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewBus creates a new event bus with specified buffer size
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, b.bufferSize)
	b.all = append(b.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Dispatch happens synchronously at
// the call site; delivery is non-blocking, events to full subscriber buffers
// are dropped and counted.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			b.droppedEvents.Add(1)
		}
	}

	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
			b.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range b.all {
		close(ch)
	}
}

// PublishResourceBlocked is a convenience method for resource_blocked events
func (b *Bus) PublishResourceBlocked(resourceID, operation, group string) {
	b.Publish(&ResourceEvent{
		BaseEvent: BaseEvent{
			EventType: EventResourceBlocked,
			Time:      time.Now(),
		},
		ResourceID: resourceID,
		Operation:  operation,
		Group:      group,
	})
}

// PublishResourceUnblocked is a convenience method for resource_unblocked events
func (b *Bus) PublishResourceUnblocked(resourceID, operation, group string) {
	b.Publish(&ResourceEvent{
		BaseEvent: BaseEvent{
			EventType: EventResourceUnblocked,
			Time:      time.Now(),
		},
		ResourceID: resourceID,
		Operation:  operation,
		Group:      group,
	})
}

// PublishOperationStarted is a convenience method for operation_started events
func (b *Bus) PublishOperationStarted(operation string, resourceIDs, groups []string) {
	b.Publish(&OperationEvent{
		BaseEvent: BaseEvent{
			EventType: EventOperationStarted,
			Time:      time.Now(),
		},
		Operation:   operation,
		ResourceIDs: resourceIDs,
		Groups:      groups,
	})
}

// PublishOperationEnded is a convenience method for operation_ended events
func (b *Bus) PublishOperationEnded(operation string, resourceIDs, groups []string) {
	b.Publish(&OperationEvent{
		BaseEvent: BaseEvent{
			EventType: EventOperationEnded,
			Time:      time.Now(),
		},
		Operation:   operation,
		ResourceIDs: resourceIDs,
		Groups:      groups,
	})
}

// PublishBlockingStateChanged is a convenience method for blocking_state_changed events
func (b *Bus) PublishBlockingStateChanged(resourceID, operation string, blocked bool) {
	b.Publish(&StateChangedEvent{
		BaseEvent: BaseEvent{
			EventType: EventBlockingStateChanged,
			Time:      time.Now(),
		},
		ResourceID: resourceID,
		Operation:  operation,
		Blocked:    blocked,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
// This prevents memory leaks from abandoned subscriptions
func (b *Bus) Unsubscribe(eventType EventType, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	subscribers := b.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			b.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
// Use this when cleaning up a subscriber that subscribed to multiple event types
func (b *Bus) UnsubscribeAll(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for eventType, subscribers := range b.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				b.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range b.all {
		if subCh == ch {
			b.all[i] = b.all[len(b.all)-1]
			b.all = b.all[:len(b.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (b *Bus) GetDroppedEventCount() int64 {
	return b.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (b *Bus) ResetDroppedEventCount() int64 {
	return b.droppedEvents.Swap(0)
}
