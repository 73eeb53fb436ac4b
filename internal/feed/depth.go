// Package feed runs the background market-data streams the engine reads
// from.
package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/btcsniper/internal/domain"
	"github.com/alanyoungcy/btcsniper/internal/platform/binance"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// DialFunc opens one depth stream connection.
type DialFunc func(ctx context.Context, url string) (DepthStream, error)

// DepthStream is a single connection that yields depth snapshots.
type DepthStream interface {
	Read() (*domain.DepthSnapshot, error)
	Close() error
}

// DepthFeed keeps the latest Binance depth snapshot. It is the only writer
// of the snapshot; readers get the whole previous or the whole next one.
type DepthFeed struct {
	url            string
	reconnectDelay time.Duration
	dial           DialFunc
	logger         *slog.Logger

	latest atomic.Pointer[domain.DepthSnapshot]
	frames atomic.Int64
}

// NewDepthFeed creates a feed for the given stream URL. A non-positive
// reconnectDelay selects DefaultReconnectDelay.
func NewDepthFeed(url string, reconnectDelay time.Duration, logger *slog.Logger) *DepthFeed {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &DepthFeed{
		url:            url,
		reconnectDelay: reconnectDelay,
		dial: func(ctx context.Context, url string) (DepthStream, error) {
			return binance.DialDepth(ctx, url)
		},
		logger: logger.With(slog.String("component", "depth_feed")),
	}
}

// WithDialer replaces the connection factory.
func (f *DepthFeed) WithDialer(dial DialFunc) *DepthFeed {
	f.dial = dial
	return f
}

// Latest returns the most recent snapshot, or nil before the first frame.
func (f *DepthFeed) Latest() *domain.DepthSnapshot {
	return f.latest.Load()
}

// Frames returns how many frames have been applied since start.
func (f *DepthFeed) Frames() int64 {
	return f.frames.Load()
}

// Run streams until ctx is cancelled, reconnecting after any failure. The
// last good snapshot stays readable while disconnected.
func (f *DepthFeed) Run(ctx context.Context) error {
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("depth stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Int64("frames", f.Frames()),
			slog.Duration("retry_in", f.reconnectDelay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *DepthFeed) runConnection(ctx context.Context) error {
	stream, err := f.dial(ctx, f.url)
	if err != nil {
		return err
	}
	f.logger.Info("depth stream connected", slog.String("url", f.url))

	// Unblock Read when the context ends.
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer func() {
		if stop() {
			stream.Close()
		}
	}()

	for {
		snap, err := stream.Read()
		if err != nil {
			return err
		}
		f.latest.Store(snap)
		f.frames.Add(1)
	}
}
