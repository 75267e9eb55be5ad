// Package events carries transfer lifecycle notifications from the engine to
// display consumers, replacing the render-driven refresh of the original UI
// with explicit subscriptions.
package events

import (
	"time"
)

// EventType identifies a lifecycle notification.
type EventType string

const (
	TransferCreated      EventType = "transfer.created"
	TransferStateChanged EventType = "transfer.state_changed"
	TransferCompleted    EventType = "transfer.completed"
	TransferFailed       EventType = "transfer.failed"
	TransferDelayed      EventType = "transfer.delayed"
)

// Event is the base interface for all lifecycle events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides the common fields.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// TransferCreatedEvent is emitted when a transfer enters the store.
type TransferCreatedEvent struct {
	BaseEvent
	TransferID string
	Account    string
	Route      string
	Amount     string
}

// TransferStateChangedEvent is emitted on every state machine transition.
type TransferStateChangedEvent struct {
	BaseEvent
	TransferID string
	Account    string
	FromState  string
	ToState    string
}

// TransferCompletedEvent is emitted when a transfer reaches Completed.
type TransferCompletedEvent struct {
	BaseEvent
	TransferID       string
	Account          string
	DestinationTxRef string
	ActualDuration   time.Duration
}

// TransferFailedEvent is emitted when a transfer reaches Failed.
type TransferFailedEvent struct {
	BaseEvent
	TransferID string
	Account    string
	Reason     string
}

// TransferDelayedEvent is the timeout advisory: the transfer outlived its
// estimate but has not failed.
type TransferDelayedEvent struct {
	BaseEvent
	TransferID string
	Account    string
	Elapsed    time.Duration
}
