package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/types"
)

const (
	initialReconnectDelay    = 1 * time.Second
	maxReconnectDelay        = 30 * time.Second
	reconnectDelayMultiplier = 2
)

// Subscriber follows a /ws stream and reconnects with exponential backoff
// when the connection drops.
type Subscriber struct {
	url *url.URL

	// MaxAttempts bounds consecutive failed dials; 0 retries forever.
	MaxAttempts int

	OnConnect    func()
	OnDisconnect func(err error)
}

// NewSubscriber targets baseURL (ws:// or wss://) with token as the query
// parameter the server expects.
func NewSubscriber(baseURL, token string) (*Subscriber, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("websocket url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return &Subscriber{url: u}, nil
}

// Run delivers each decoded message to fn until ctx ends or MaxAttempts
// consecutive dials fail.
func (s *Subscriber) Run(ctx context.Context, fn func(types.WebSocketMessage)) error {
	delay := initialReconnectDelay
	failures := 0
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	for {
		conn, _, err := dialer.DialContext(ctx, s.url.String(), nil)
		if err == nil {
			failures = 0
			delay = initialReconnectDelay
			if s.OnConnect != nil {
				s.OnConnect()
			}
			err = s.read(ctx, conn, fn)
			if s.OnDisconnect != nil {
				s.OnDisconnect(err)
			}
		} else {
			failures++
			logger.Warnf("[WS] dial attempt %d failed: %v", failures, err)
			if s.MaxAttempts > 0 && failures >= s.MaxAttempts {
				return fmt.Errorf("%w: %v", ErrNotConnected, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= reconnectDelayMultiplier
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *Subscriber) read(ctx context.Context, conn *websocket.Conn, fn func(types.WebSocketMessage)) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg types.WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warnf("[WS] undecodable message: %v", err)
			continue
		}
		fn(msg)
	}
}
