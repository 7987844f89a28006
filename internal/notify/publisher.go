// Package notify fans room change events out to interested listeners.
// Delivery is best effort: a failing sink is logged and never blocks
// the operation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

// Sink receives serialized room events. Implementations must not
// retain the payload slice after returning.
type Sink interface {
	Deliver(ctx context.Context, payload []byte) error
}

// Broker encodes room events once and hands the payload to every
// configured sink. It implements application.EventPublisher.
type Broker struct {
	logger *slog.Logger
	sinks  []Sink
}

func NewBroker(logger *slog.Logger, sinks ...Sink) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{logger: logger, sinks: sinks}
}

func (b *Broker) PublishRoomEvent(ctx context.Context, event application.RoomEvent) {
	if len(b.sinks) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.loggerFor(ctx).Error("encode room event", slog.String("op", event.Op), slog.String("error", err.Error()))
		return
	}

	for _, sink := range b.sinks {
		if err := sink.Deliver(ctx, payload); err != nil {
			b.loggerFor(ctx).Warn("deliver room event",
				slog.String("op", event.Op),
				slog.String("room_id", event.RoomID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (b *Broker) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return b.logger
}
