package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/flightdesk/reservation/internal/database"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// MessageType represents the type of WebSocket message
type MessageType string

const MessageTypeSeatsUpdated MessageType = "seats_updated"

// SeatUpdate represents a seat status change
type SeatUpdate struct {
	SeatNumber string `json:"seatNumber"`
	Status     string `json:"status"`
}

// Message represents a WebSocket message
type Message struct {
	Type      MessageType  `json:"type"`
	FlightID  string       `json:"flightId"`
	Seats     []SeatUpdate `json:"seats"`
	Timestamp int64        `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	flightID uuid.UUID
}

type broadcast struct {
	flightID uuid.UUID
	data     []byte
}

// Hub fans seat updates out to the clients watching each flight. Only Run
// touches the client sets.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}

	mu     sync.RWMutex
	counts map[uuid.UUID]int

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
		counts:     make(map[uuid.UUID]int),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run starts the hub's main loop and closes every client when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for flightID, clients := range h.clients {
				for c := range clients {
					h.drop(flightID, c)
				}
			}
			return

		case c := <-h.register:
			if h.clients[c.flightID] == nil {
				h.clients[c.flightID] = make(map[*Client]bool)
			}
			h.clients[c.flightID][c] = true
			h.setCount(c.flightID)
			h.logger.Debug("websocket client registered",
				zap.String("flight_id", c.flightID.String()),
				zap.Int("clients", len(h.clients[c.flightID])))

		case c := <-h.unregister:
			if h.clients[c.flightID][c] {
				h.drop(c.flightID, c)
			}

		case msg := <-h.broadcast:
			for c := range h.clients[msg.flightID] {
				select {
				case c.send <- msg.data:
				default:
					h.logger.Info("dropping slow websocket client", zap.String("flight_id", msg.flightID.String()))
					h.drop(msg.flightID, c)
				}
			}
		}
	}
}

func (h *Hub) drop(flightID uuid.UUID, c *Client) {
	delete(h.clients[flightID], c)
	close(c.send)
	if len(h.clients[flightID]) == 0 {
		delete(h.clients, flightID)
	}
	h.setCount(flightID)
}

func (h *Hub) setCount(flightID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.clients[flightID]); n > 0 {
		h.counts[flightID] = n
	} else {
		delete(h.counts, flightID)
	}
}

// NotifySeatChanged queues a seats_updated message for the flight. It never
// blocks; updates are dropped when the hub is saturated or stopped.
func (h *Hub) NotifySeatChanged(flightID uuid.UUID, seatNumber string, status database.SeatStatus) {
	data, err := json.Marshal(Message{
		Type:      MessageTypeSeatsUpdated,
		FlightID:  flightID.String(),
		Seats:     []SeatUpdate{{SeatNumber: seatNumber, Status: string(status)}},
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("marshal seat update", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- broadcast{flightID: flightID, data: data}:
	default:
		h.logger.Warn("seat update dropped", zap.String("flight_id", flightID.String()))
	}
}

// ClientCount returns the number of clients watching a flight
func (h *Hub) ClientCount(flightID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[flightID]
}

// ServeFlight upgrades the request and subscribes the connection to flightID.
func (h *Hub) ServeFlight(w http.ResponseWriter, r *http.Request, flightID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), flightID: flightID}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards client messages and detects closed connections.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
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

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
