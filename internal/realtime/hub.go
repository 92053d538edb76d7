// Package realtime pushes marketplace events to connected websocket clients.
// Every client is in its own user room; contract rooms are joined on request.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Envelope is the wire format in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Encode renders an outgoing event.
func Encode(event string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(outgoing{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return payload, nil
}

// Hub tracks which clients are in which rooms and fans payloads out to them.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = make(map[string]struct{})
	}
}

// Join adds a registered client to room. It reports false for a client that
// is gone.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	joined[room] = struct{}{}
	return true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined := h.clients[c]; joined != nil {
		delete(joined, room)
	}
}

// Unregister removes the client from every room and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range joined {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

// Deliver queues payload for every client in room and returns how many
// clients got it. Clients whose queue is full are dropped.
func (h *Hub) Deliver(room string, payload []byte) int {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Send queue full for client %s (user %s), disconnecting", c.ID, c.Actor.ID.Hex())
		h.Unregister(c)
		c.closeConn()
	}
	return delivered
}

// sendTo queues payload for one client.
func (h *Hub) sendTo(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Broadcast delivers an event to the clients connected to this process.
func (h *Hub) Broadcast(_ context.Context, room, event string, data interface{}) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	h.Deliver(room, payload)
	return nil
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
		c.closeConn()
	}
}
