package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn implements Conn over a gorilla websocket connection.
//
// gorilla permits one concurrent writer per connection; the mutex
// serialises reply writes from the read loop against pushes from the
// dispatcher and command issuer.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

// Send writes a frame as a JSON text message. A stalled terminal hits the
// write deadline instead of blocking the caller indefinitely.
func (c *wsConn) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		//nolint:errcheck // Best-effort deadline; write error caught below
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteJSON(f)
}

// Close closes the underlying websocket connection.
func (c *wsConn) Close() error {
	return c.ws.Close()
}
