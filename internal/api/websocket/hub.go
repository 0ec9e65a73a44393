package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fortuna/argus/internal/livetrack"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub maintains the set of active clients and broadcasts game updates to
// them. It also implements the tracker's publisher interface, so every
// applied delta reaches connected clients directly.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      chan chan int
}

// NewHub creates a new client hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
	}
}

// Run processes register, unregister and broadcast events until the hub is
// stopped. Slow clients are dropped rather than allowed to block the rest.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Broadcast queues a raw message for all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	reply := make(chan int)
	h.count <- reply
	return <-reply
}

// wsMessage is the wire form of a broadcast game update
type wsMessage struct {
	Type          string     `json:"type"`
	GameID        int        `json:"game_id"`
	SportCode     string     `json:"sport_code"`
	Status        *string    `json:"status,omitempty"`
	ScheduledAt   *time.Time `json:"gamedatetime,omitempty"`
	ScoreVisitor  *int       `json:"score_visitor,omitempty"`
	ScoreHome     *int       `json:"score_home,omitempty"`
	ScoreOvertime *string    `json:"score_overtime,omitempty"`
	NewEventCount int        `json:"new_event_count"`
}

// PublishDelta broadcasts an in-progress game change
func (h *Hub) PublishDelta(ctx context.Context, delta livetrack.Delta) error {
	return h.publish("delta", delta)
}

// PublishFinal broadcasts a finished game
func (h *Hub) PublishFinal(ctx context.Context, delta livetrack.Delta) error {
	return h.publish("final", delta)
}

func (h *Hub) publish(messageType string, delta livetrack.Delta) error {
	msg := wsMessage{
		Type:          messageType,
		GameID:        delta.Key.GameID,
		SportCode:     delta.Key.SportCode,
		Status:        delta.Status,
		ScheduledAt:   delta.ScheduledAt,
		ScoreVisitor:  delta.ScoreVisitor,
		ScoreHome:     delta.ScoreHome,
		ScoreOvertime: delta.ScoreOvertime,
		NewEventCount: len(delta.NewEvents),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.Broadcast(data)
	return nil
}

// Client is a middleman between a WebSocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound messages and keeps the connection alive until
// the client goes away
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️  WebSocket read error: %v", err)
			}
			return
		}
	}
}

// writePump forwards hub messages to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
