package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single client connection (a user watching a game).
// It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// Hub fans document-store change events out to the SSE clients watching each
// game code.
type Hub struct {
	games map[string]map[Client]bool
	mu    sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		games: make(map[string]map[Client]bool),
	}
}

// Subscribe adds a new client to a specific game code.
func (h *Hub) Subscribe(code string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.games[code]; !ok {
		h.games[code] = make(map[Client]bool)
	}
	h.games[code][client] = true
}

// Unsubscribe removes a client from a game code.
func (h *Hub) Unsubscribe(code string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.games[code]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Close the channel to signal the SSE handler to stop.
			if len(clients) == 0 {
				delete(h.games, code)
			}
		}
	}
}

// Broadcast sends an event to all clients watching a game code.
func (h *Hub) Broadcast(code string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.games[code]; ok {
		messageBytes, err := json.Marshal(event)
		if err != nil {
			log.Printf("hub: marshal event: %v", err)
			return
		}

		for client := range clients {
			// Use a non-blocking send to prevent a slow client from blocking the hub.
			select {
			case client <- messageBytes:
			default:
				// Client channel is full, maybe they are disconnected or slow.
				// The unsubscribe logic will handle cleaning this up eventually.
			}
		}
	}
}
