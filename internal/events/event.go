// Package events provides the typed pub/sub bus that carries pipeline
// progress, completion, and error events to registered sinks. Events are
// delivered at most once and never retained after delivery.
package events

import "time"

// Event is the base interface all events implement.
type Event interface {
	EventType() string
	ItemID() string
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"item_id"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) ItemID() string        { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a BaseEvent with the current timestamp.
func NewBaseEvent(eventType, itemID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		ID:        itemID,
		Timestamp: time.Now(),
	}
}
