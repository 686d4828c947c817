package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/word-battle/internal/sessions"
)

// Hub maintains the set of connected clients
type Hub struct {
	// Registered clients by ID
	clients map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Registry reference; a client's playback ends with its connection
	registry *sessions.Registry

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(registry *sessions.Registry) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
	}
}

// Run starts the hub's main loop. When ctx ends every client is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			log.Debug().Str("component", "hub").Str("client", client.id).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			delete(h.clients, client.id)
			h.mu.Unlock()
			if !ok {
				continue
			}
			client.close()
			h.handleDisconnect(client)
			log.Debug().Str("component", "hub").Str("client", client.id).Msg("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.close()
				h.handleDisconnect(client)
			}
			go h.drain()
			return
		}
	}
}

// drain absorbs late registrations after shutdown so pumps never block
func (h *Hub) drain() {
	for {
		select {
		case client := <-h.register:
			client.close()
		case <-h.unregister:
		}
	}
}

// handleDisconnect stops whatever the client was watching
func (h *Hub) handleDisconnect(client *Client) {
	if h.registry == nil {
		return
	}
	if err := h.registry.Stop(client.id); err == nil {
		log.Info().Str("component", "hub").Str("client", client.id).Msg("playback stopped on disconnect")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
