// Package events carries notifications between the download manager, the
// library and the quota monitor. Events go out on a Bus and, unless
// transient, are appended to the EventLog.
package events

import "time"

// Event is implemented by everything published on the Bus.
type Event interface {
	EventType() string
	EntityType() string // "download", "asset", "library", "storage"
	EntityID() string
	OccurredAt() time.Time
}

// BaseEvent is the header every concrete event embeds.
type BaseEvent struct {
	Type      string    `json:"type"`
	Entity    string    `json:"entity_type"`
	ID        string    `json:"entity_id"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EntityType() string    { return e.Entity }
func (e BaseEvent) EntityID() string      { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a header with the current time.
func NewBaseEvent(eventType, entityType, entityID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Entity:    entityType,
		ID:        entityID,
		Timestamp: time.Now(),
	}
}
