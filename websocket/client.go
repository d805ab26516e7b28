package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one browser connection.
type Client struct {
	hub  *Hub
	uid  string
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, uid string, conn *websocket.Conn) *Client {
	return &Client{hub: hub, uid: uid, conn: conn, send: make(chan []byte, 256)}
}

// readPump drains inbound frames so pongs and closes are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("[WS] read error for %s: %v", c.uid, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warnf("[WS] write error for %s: %v", c.uid, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Verifier resolves a token to a user id.
type Verifier interface {
	Verify(ctx context.Context, header string) (string, error)
}

// Handler upgrades /ws?token=... after verifying the token, then streams
// that user's notifications.
func Handler(hub *Hub, v Verifier, allowOrigin func(*http.Request) bool) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     allowOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
		}
		uid, err := v.Verify(r.Context(), token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("[WS] upgrade failed: %v", err)
			return
		}

		c := newClient(hub, uid, conn)
		select {
		case hub.register <- c:
		case <-hub.done:
			conn.Close()
			return
		}

		hello, err := types.NewWebSocketMessage(types.WSTypeConnection, map[string]any{
			"connected": true,
			"uid":       uid,
			"timestamp": time.Now().Format(time.RFC3339),
		}).ToJSON()
		if err == nil {
			select {
			case c.send <- hello:
			default:
			}
		}

		go c.writePump()
		go c.readPump()
	}
}
