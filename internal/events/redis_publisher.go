package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel events are fanned out on.
const DefaultChannel = "ticket-routing.events"

// RedisPublisher forwards dispatched events to a Redis pub/sub channel so
// other processes can follow ticket activity.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher builds a publisher. An empty channel uses DefaultChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Attach subscribes the publisher to every engine event on d.
func (p *RedisPublisher) Attach(d Dispatcher) {
	for _, eventType := range AllEventTypes {
		d.Subscribe(eventType, p.Handle)
	}
}

// Handle publishes one event as JSON.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}
