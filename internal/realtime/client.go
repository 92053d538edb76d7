package realtime

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"agrolink/api/internal/services"
)

const (
	// Time allowed to read the next pong from the client.
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	maxMessageSize = 64 * 1024

	sendBufferSize = 256

	// Upper bound for handling one client event.
	handleTimeout = 15 * time.Second
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	ID    uuid.UUID
	Actor services.Actor
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
}

func NewClient(hub *Hub, actor services.Actor, conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.New(),
		Actor: actor,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
	}
}

func (c *Client) closeConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// emit queues an event for this client only.
func (c *Client) emit(event string, data interface{}) {
	payload, err := Encode(event, data)
	if err != nil {
		log.Printf("Failed to encode %s for client %s: %v", event, c.ID, err)
		return
	}
	if !c.hub.sendTo(c, payload) {
		log.Printf("Dropped %s for client %s", event, c.ID)
	}
}

// Run starts the pumps. It returns immediately.
func (c *Client) Run(d *Dispatcher) {
	go c.writePump()
	go c.readPump(d)
}

func (c *Client) readPump(d *Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("WebSocket client %s disconnected for user %s", c.ID, c.Actor.ID.Hex())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		d.Handle(ctx, c, message)
		cancel()
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing to client %s: %v", c.ID, err)
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
