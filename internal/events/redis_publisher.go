package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends events to a Redis stream. Used where clinics run the
// stack without AWS.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher creates a stream-backed publisher.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if client == nil {
		panic("events: redis client cannot be nil")
	}
	if stream == "" {
		panic("events: redis stream cannot be empty")
	}
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"kind":  event.Kind,
			"event": string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("events: xadd to %s: %w", p.stream, err)
	}
	return nil
}
