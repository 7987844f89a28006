package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes room events on a redis pub/sub channel so that
// other instances and external consumers can follow catalog changes.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects a sink to the given redis URL. The connection
// is verified immediately so misconfiguration surfaces at startup.
func NewRedisSink(ctx context.Context, redisURL, channel string) (*RedisSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Subscribe invokes handler for every payload published on the sink's
// channel, including payloads from other instances. It blocks until
// ctx is canceled.
func (s *RedisSink) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler([]byte(msg.Payload))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
