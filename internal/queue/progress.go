package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"

	"scholar-project-service/internal/events"
)

const progressChannel = "jobs:progress"

// ProgressBus carries worker progress callbacks from worker processes back
// to the API over Redis pub/sub. Delivery is at-most-once and best-effort:
// the durable job row is the source of truth, a missed event only delays a
// client until its next poll.
type ProgressBus struct {
	client *redis.Client
}

// NewProgressBus wraps a Redis client as a progress bus.
func NewProgressBus(client *redis.Client) *ProgressBus {
	return &ProgressBus{client: client}
}

// Publish sends one progress event.
func (b *ProgressBus) Publish(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := b.client.Publish(ctx, progressChannel, data).Err(); err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}

// Subscribe consumes progress events until the context is cancelled,
// invoking handle for each decoded event in arrival order. Malformed
// messages are logged and skipped.
func (b *ProgressBus) Subscribe(ctx context.Context, handle func(events.Event)) error {
	sub := b.client.Subscribe(ctx, progressChannel)
	defer sub.Close()

	// Force the subscription before consuming so publishers racing with
	// startup are not silently missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe progress channel: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("payload", msg.Payload).Msg("dropping malformed progress event")
				continue
			}
			handle(ev)
		}
	}
}
