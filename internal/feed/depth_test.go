package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// scriptStream yields its snapshots, then fails.
type scriptStream struct {
	mu     sync.Mutex
	snaps  []*domain.DepthSnapshot
	closed chan struct{}
	once   sync.Once
	block  bool
}

func (s *scriptStream) Read() (*domain.DepthSnapshot, error) {
	s.mu.Lock()
	if len(s.snaps) > 0 {
		snap := s.snaps[0]
		s.snaps = s.snaps[1:]
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()
	if s.block {
		<-s.closed
	}
	return nil, domain.ErrWSDisconnect
}

func (s *scriptStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func newScript(block bool, prices ...float64) *scriptStream {
	s := &scriptStream{closed: make(chan struct{}), block: block}
	for _, p := range prices {
		s.snaps = append(s.snaps, &domain.DepthSnapshot{Bids: []domain.Wall{{Price: p, Volume: 1}}})
	}
	return s
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDepthFeedKeepsLatestAcrossReconnects(t *testing.T) {
	var dials atomic.Int32
	streams := []*scriptStream{newScript(false, 100, 101), newScript(true, 102)}

	f := NewDepthFeed("ws://test", time.Millisecond, discard()).WithDialer(
		func(ctx context.Context, url string) (DepthStream, error) {
			n := dials.Add(1)
			if n == 2 {
				return nil, errors.New("dial refused")
			}
			if n > 3 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return streams[min(int(n)-1, 1)], nil
		})
	assert.Nil(t, f.Latest())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return f.Frames() == 3 }, 2*time.Second, time.Millisecond)
	best, ok := f.Latest().BestBid()
	assert.True(t, ok)
	assert.Equal(t, 102.0, best)
	assert.Equal(t, int32(3), dials.Load())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
	select {
	case <-streams[1].closed:
	default:
		t.Fatal("stream not closed on cancel")
	}
}

func TestDepthFeedDefaultDelay(t *testing.T) {
	f := NewDepthFeed("ws://test", 0, discard())
	assert.Equal(t, DefaultReconnectDelay, f.reconnectDelay)
}
