package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/event"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// locationEvent routes an event to one location's room
type locationEvent struct {
	Location enum.Location
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by location
	rooms map[enum.Location]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *locationEvent

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[enum.Location]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *locationEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// All remaining client send channels are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for loc, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, loc)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.location] == nil {
				h.rooms[client.location] = make(map[*Client]bool)
			}
			h.rooms[client.location][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.Location] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the room
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.location]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.location)
	}
}

// ClientCount returns the number of subscribers for loc.
func (h *Hub) ClientCount(loc enum.Location) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[loc])
}

// BroadcastToLocation sends an event to all clients subscribed to loc.
// It never blocks once the hub has stopped.
func (h *Hub) BroadcastToLocation(loc enum.Location, ev Event) {
	select {
	case h.broadcast <- &locationEvent{Location: loc, Event: ev}:
	case <-h.done:
	}
}

// Notify implements event.Notifier.
func (h *Hub) Notify(ctx context.Context, e event.Order) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.BroadcastToLocation(e.Location, Event{Type: e.Type, Payload: payload})
	return nil
}
