package domain

import "context"

// EventBus fans engine events out to external consumers. Publish is
// fire-and-forget pub/sub; StreamAppend is durable and ordered.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
