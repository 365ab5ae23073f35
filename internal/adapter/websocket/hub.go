// Package websocket pushes dashboard snapshots to connected presentation
// clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/domain"
	"github.com/azimjon-95/totli-webapp/internal/observability/telemetry"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound snapshots for every client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Last snapshot sent, replayed to new clients.
	latest []byte

	// Closed when Run returns.
	done chan struct{}

	// Write pumps still running.
	writers atomic.Int32

	log *zap.Logger
	mu  sync.RWMutex
}

type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves register, unregister and broadcast requests until ctx ends
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			telemetry.UpdateClients.Set(0)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.latest != nil {
				client.send <- h.latest
			}
			telemetry.UpdateClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			telemetry.UpdateClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			h.latest = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client; it reconnects and gets the latest snapshot
					close(client.send)
					delete(h.clients, client)
				}
			}
			telemetry.UpdateClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the oldest pending message is dropped so the newest state
// always goes out.
func (h *Hub) Broadcast(message []byte) {
	for {
		select {
		case h.broadcast <- message:
			return
		default:
		}
		select {
		case <-h.broadcast:
			h.log.Debug("Update queue full, dropped oldest snapshot")
		default:
		}
	}
}

// PublishSnapshot broadcasts snap as JSON. It is registered as a
// controller change listener.
func (h *Hub) PublishSnapshot(snap domain.Snapshot) {
	message, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("Failed to encode snapshot", zap.Error(err))
		return
	}
	h.Broadcast(message)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AddClient serves conn until it disconnects. The fiber websocket handler
// recycles conn once it returns, so this blocks until both pumps are done.
func (h *Hub) AddClient(conn *websocket.Conn) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	written := make(chan struct{})
	h.writers.Add(1)
	go func() {
		defer close(written)
		defer h.writers.Add(-1)
		client.writePump()
	}()
	client.readPump()
	<-written
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// Push only: reads keep control frames flowing and detect close
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// The hub closed the channel.
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
