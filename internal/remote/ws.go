package remote

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// wsConn frames the protocol over WebSocket text messages, one frame per
// message.
type wsConn struct {
	conn *websocket.Conn
}

// NewWebsocketConn wraps an established WebSocket connection as a FrameConn.
func NewWebsocketConn(conn *websocket.Conn) FrameConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteFrame(data []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// DialWebsocket connects to an agent listening in WebSocket mode and performs
// the protocol handshake. Used when SSH access to the host is not available.
func DialWebsocket(ctx context.Context, url string) (Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial agent at %s: %w", url, err)
	}
	return NewSession(ctx, NewWebsocketConn(conn))
}
