// Package websocket pushes notifications to connected browsers. Each
// connection belongs to one user, and messages are routed by uid.
package websocket

import (
	"sync"

	"github.com/Sanidhya49/Invested/logger"
	"github.com/Sanidhya49/Invested/types"
)

// Envelope is a message addressed to one user, or to everyone when UID is
// empty.
type Envelope struct {
	UID  string
	Data []byte
}

// Hub tracks clients per user and fans messages out to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Envelope
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run services the hub channels until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			h.setCount(0)
			return

		case c := <-h.register:
			set, ok := h.clients[c.uid]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.uid] = set
			}
			set[c] = true
			h.setCount(h.count + 1)
			logger.Debugf("[WS] client registered for %s", c.uid)

		case c := <-h.unregister:
			if set, ok := h.clients[c.uid]; ok && set[c] {
				delete(set, c)
				close(c.send)
				if len(set) == 0 {
					delete(h.clients, c.uid)
				}
				h.setCount(h.count - 1)
				logger.Debugf("[WS] client unregistered for %s", c.uid)
			}

		case env := <-h.broadcast:
			for uid, set := range h.clients {
				if env.UID != "" && env.UID != uid {
					continue
				}
				for c := range set {
					select {
					case c.send <- env.Data:
					default:
						// Slow consumer; drop it.
						delete(set, c)
						close(c.send)
						h.setCount(h.count - 1)
					}
				}
			}
		}
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Send queues raw data for uid. It returns ErrBufferFull when the hub is
// backed up.
func (h *Hub) Send(uid string, data []byte) error {
	select {
	case h.broadcast <- Envelope{UID: uid, Data: data}:
		return nil
	case <-h.done:
		return ErrNotConnected
	default:
		return ErrBufferFull
	}
}

// Broadcast queues data for every client.
func (h *Hub) Broadcast(data []byte) error {
	return h.Send("", data)
}

// Notify wraps payload in a notification message for uid.
func (h *Hub) Notify(uid string, payload types.NotificationPayload) error {
	data, err := types.NewWebSocketMessage(types.WSTypeNotification, payload).ToJSON()
	if err != nil {
		return err
	}
	return h.Send(uid, data)
}
