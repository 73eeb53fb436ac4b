package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	message any
	xadd    *redis.XAddArgs
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func (f *fakePublisher) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.xadd = a
	return redis.NewStringResult("1-0", f.err)
}

func TestEventBusPublish(t *testing.T) {
	fp := &fakePublisher{}
	bus := NewEventBus(fp, 0)

	require.NoError(t, bus.Publish(context.Background(), "sniper:briefs", []byte(`{"id":"b1"}`)))
	assert.Equal(t, "sniper:briefs", fp.channel)
	assert.Equal(t, []byte(`{"id":"b1"}`), fp.message)
}

func TestEventBusStreamAppend(t *testing.T) {
	fp := &fakePublisher{}
	bus := NewEventBus(fp, 0)

	require.NoError(t, bus.StreamAppend(context.Background(), "sniper:decisions", []byte("x")))
	require.NotNil(t, fp.xadd)
	assert.Equal(t, "sniper:decisions", fp.xadd.Stream)
	assert.Equal(t, DefaultStreamMaxLen, fp.xadd.MaxLen)
	assert.True(t, fp.xadd.Approx)
	assert.Equal(t, map[string]any{"payload": []byte("x")}, fp.xadd.Values)
}

func TestEventBusErrors(t *testing.T) {
	fp := &fakePublisher{err: errors.New("connection refused")}
	bus := NewEventBus(fp, 500)

	err := bus.Publish(context.Background(), "c", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: publish c")

	err = bus.StreamAppend(context.Background(), "s", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: stream append s")
	assert.Equal(t, int64(500), fp.xadd.MaxLen)
}
