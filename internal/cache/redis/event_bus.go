package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// DefaultStreamMaxLen is the approximate stream length kept by XADD MAXLEN ~.
const DefaultStreamMaxLen int64 = 10000

// publisher is the subset of *redis.Client the bus needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// EventBus implements domain.EventBus with Pub/Sub for briefs and Streams for
// the decision journal.
type EventBus struct {
	rdb    publisher
	maxLen int64
}

// NewEventBus wraps rdb. A non-positive maxLen selects DefaultStreamMaxLen.
func NewEventBus(rdb publisher, maxLen int64) *EventBus {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &EventBus{rdb: rdb, maxLen: maxLen}
}

// Publish sends payload to a Pub/Sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend appends payload under the "payload" field of stream.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload": payload,
		},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

var _ domain.EventBus = (*EventBus)(nil)
