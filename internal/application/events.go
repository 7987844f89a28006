package application

import (
	"context"
	"time"
)

// Room change operations carried on the notification channel.
const (
	EventRoomCreated = "room.created"
	EventRoomUpdated = "room.updated"
	EventRoomDeleted = "room.deleted"
	EventRoomBooked  = "room.booked"
)

// RoomEvent describes a catalog mutation other clients may want to react to.
type RoomEvent struct {
	Op         string    `json:"op"`
	RoomID     string    `json:"room_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher fans room change events out to interested subscribers.
// Publishing is best-effort: implementations log failures and never block a
// mutation from committing.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event RoomEvent)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// PublishRoomEvent implements EventPublisher.
func (NopPublisher) PublishRoomEvent(context.Context, RoomEvent) {}
