package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventChannelPrefix = "events:"

// Event is the envelope published for every broadcast.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Groups  []string        `json:"groups"`
	SentAt  time.Time       `json:"sent_at"`
}

// EventBus broadcasts domain events over Redis pub/sub, one channel per group.
type EventBus struct {
	client *redis.Client
}

// NewEventBus creates a new EventBus.
func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client}
}

// EventChannel returns the pub/sub channel for a subscriber group.
func EventChannel(group string) string {
	return eventChannelPrefix + group
}

// Broadcast publishes the event to every group. Delivery is not acknowledged.
func (b *EventBus) Broadcast(ctx context.Context, name string, payload any, groups []string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Event{
		Name:    name,
		Payload: body,
		Groups:  groups,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, group := range groups {
		if err := b.client.Publish(ctx, EventChannel(group), data).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe returns a subscription to the given groups' channels.
func (b *EventBus) Subscribe(ctx context.Context, groups ...string) *redis.PubSub {
	channels := make([]string, 0, len(groups))
	for _, group := range groups {
		channels = append(channels, EventChannel(group))
	}
	return b.client.Subscribe(ctx, channels...)
}
