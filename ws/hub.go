package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the frame pushed to live-result subscribers.
type Message struct {
	Type     string      `json:"type"`
	VotingID uint        `json:"voting_id"`
	Payload  interface{} `json:"payload"`
}

// Hub keeps the live-result subscribers grouped by voting and broadcasts
// freshly aggregated results to them after every recorded ballot.
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run must be started in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes client registration until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.votingID]; !ok {
				h.clients[client.votingID] = make(map[*Client]bool)
			}
			h.clients[client.votingID][client] = true
			h.mu.Unlock()
			log.Printf("Live client joined voting %d", client.votingID)

		case client := <-h.unregister:
			h.mu.Lock()
			if group, ok := h.clients[client.votingID]; ok {
				if _, ok := group[client]; ok {
					delete(group, client)
					close(client.send)
					if len(group) == 0 {
						delete(h.clients, client.votingID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Live client left voting %d", client.votingID)
		}
	}
}

// Broadcast sends a message to every subscriber of one voting. Slow clients
// that cannot keep up are dropped.
func (h *Hub) Broadcast(votingID uint, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal live message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[votingID] {
		select {
		case client.send <- data:
		default:
			// Send buffer full; the write pump will clean the client up.
		}
	}
}
