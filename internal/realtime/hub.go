// Package realtime pushes lot availability to websocket subscribers.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/parking-manager/internal/application"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 16
	broadcastQueue = 64
)

// AvailabilityMessage is the JSON frame sent to subscribers.
type AvailabilityMessage struct {
	LotID     int64 `json:"lot_id"`
	Capacity  int   `json:"capacity"`
	Occupied  int   `json:"occupied"`
	Available int   `json:"available"`
}

type client struct {
	conn *websocket.Conn
	send chan AvailabilityMessage
}

// Hub fans availability updates out to connected websocket clients. Run owns
// the client set; publishers never block on slow subscribers.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan AvailabilityMessage
	done       chan struct{}
	clients    atomic.Int64
	logger     *slog.Logger
}

var _ application.AvailabilityPublisher = (*Hub)(nil)

// NewHub constructs a hub. Call Run before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan AvailabilityMessage, broadcastQueue),
		done:       make(chan struct{}),
		logger:     logger.With("component", "AvailabilityHub"),
	}
}

// Run delivers broadcasts until ctx is cancelled, then closes every client.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	members := make(map[*client]struct{})
	drop := func(c *client) {
		if _, ok := members[c]; ok {
			delete(members, c)
			close(c.send)
			h.clients.Store(int64(len(members)))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range members {
				drop(c)
			}
			return
		case c := <-h.register:
			members[c] = struct{}{}
			h.clients.Store(int64(len(members)))
		case c := <-h.unregister:
			drop(c)
		case msg := <-h.broadcast:
			for c := range members {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("dropping slow availability subscriber", "remote_addr", c.conn.RemoteAddr().String())
					drop(c)
				}
			}
		}
	}
}

// Clients reports the number of registered subscribers.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// PublishAvailability queues an update for every subscriber. The update is
// discarded when the queue is full.
func (h *Hub) PublishAvailability(ctx context.Context, availability application.LotAvailability) {
	msg := AvailabilityMessage{
		LotID:     availability.LotID,
		Capacity:  availability.Capacity,
		Occupied:  availability.Occupied,
		Available: availability.Available,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WarnContext(ctx, "availability queue full, update dropped", "lot_id", msg.LotID)
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan AvailabilityMessage, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames and unregisters the client when the peer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
