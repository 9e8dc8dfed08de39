// Package hub fans live notifications out to websocket clients grouped in rooms.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload"`
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

// Run processes registrations until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.rooms {
				for c := range clients {
					c.closeSend()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			for _, room := range c.rooms {
				if _, ok := h.rooms[room]; !ok {
					h.rooms[room] = make(map[*Client]struct{})
				}
				h.rooms[room][c] = struct{}{}
			}
			h.mu.Unlock()
			h.logger.Debug("Websocket client registered", slog.Any("rooms", c.rooms))

		case c := <-h.unregister:
			h.mu.Lock()
			for _, room := range c.rooms {
				delete(h.rooms[room], c)
				if len(h.rooms[room]) == 0 {
					delete(h.rooms, room)
				}
			}
			c.closeSend()
			h.mu.Unlock()
			h.logger.Debug("Websocket client unregistered", slog.Any("rooms", c.rooms))
		}
	}
}

// BroadcastToRoom queues msg for every client in room. Clients whose buffer
// is full miss the message.
func (h *Hub) BroadcastToRoom(room string, msg Message) error {
	msg.Room = room
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message for room %s: %w", room, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Websocket client buffer full, dropping message", slog.String("room", room))
		}
	}
	return nil
}

// RoomSize returns the number of clients connected to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
