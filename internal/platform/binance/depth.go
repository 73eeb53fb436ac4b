// Package binance holds the Binance market-data clients: the spot depth
// WebSocket stream and the USDⓈ-M futures funding lookup.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const (
	// handshakeTimeout bounds the WebSocket upgrade.
	handshakeTimeout = 15 * time.Second

	// readWait is the longest gap between frames before the connection is
	// treated as dead. The partial-depth stream pushes every 100ms.
	readWait = 60 * time.Second
)

// depthFrame is one partial book depth message.
type depthFrame struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// DepthConn is a live connection to a partial-depth stream.
type DepthConn struct {
	conn *websocket.Conn
}

// DialDepth opens the depth stream at url, e.g.
// "wss://stream.binance.com:9443/ws/btcusdt@depth20@100ms".
func DialDepth(ctx context.Context, url string) (*DepthConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance/depth: connect: %w", err)
	}
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	return &DepthConn{conn: conn}, nil
}

// Read blocks for the next frame and converts it into a snapshot. Levels
// keep the exchange order: bids descending, asks ascending.
func (d *DepthConn) Read() (*domain.DepthSnapshot, error) {
	d.conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := d.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("binance/depth: %w: %v", domain.ErrWSDisconnect, err)
	}
	return parseDepth(data, time.Now().UTC())
}

// Close closes the underlying connection.
func (d *DepthConn) Close() error {
	return d.conn.Close()
}

func parseDepth(data []byte, at time.Time) (*domain.DepthSnapshot, error) {
	var frame depthFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("binance/depth: decode frame: %w", err)
	}
	bids, err := parseLevels(frame.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(frame.Asks)
	if err != nil {
		return nil, err
	}
	return &domain.DepthSnapshot{Bids: bids, Asks: asks, ReceivedAt: at}, nil
}

func parseLevels(levels [][2]string) ([]domain.Wall, error) {
	out := make([]domain.Wall, 0, len(levels))
	for _, lvl := range levels {
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, fmt.Errorf("binance/depth: price %q: %w", lvl[0], err)
		}
		qty, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, fmt.Errorf("binance/depth: quantity %q: %w", lvl[1], err)
		}
		out = append(out, domain.Wall{Price: price, Volume: qty})
	}
	return out, nil
}
