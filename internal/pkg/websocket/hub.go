// Package websocket streams activity log entries to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
)

// Event is the frame sent to clients.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	EventActivity = "activity"
	EventFilter   = "filter"
	EventError    = "error"
)

// ErrHubClosed is returned by Serve after the hub has stopped.
var ErrHubClosed = errors.New("activity stream is shut down")

// Hub maintains the set of active clients and fans activity entries out to
// those whose filter matches.
type Hub struct {
	clients map[*Client]bool

	// Entries waiting to be broadcast. Publish never blocks on it.
	broadcast  chan models.ActivityLog
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.ActivityLog, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run handles registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case entry := <-h.broadcast:
			h.broadcastEntry(entry)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Info().
		Int64("userID", client.userID).
		Str("addr", client.conn.RemoteAddr().String()).
		Msg("Activity stream client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Info().Int64("userID", client.userID).Msg("Activity stream client unregistered")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcastEntry(entry models.ActivityLog) {
	data, err := json.Marshal(Event{Type: EventActivity, Data: entry, Timestamp: entry.CreatedAt})
	if err != nil {
		h.logger.Error().Err(err).Int64("entryID", entry.ID).Msg("Failed to marshal activity for broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for client := range h.clients {
		if !client.Filter().Matches(entry) {
			continue
		}
		select {
		case client.send <- data:
			delivered++
		default:
			// Slow consumer; drop it rather than stall the feed.
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn().Int64("userID", client.userID).Msg("Dropped slow activity stream client")
		}
	}

	h.logger.Debug().Str("action", entry.Action).Int("clients", delivered).Msg("Activity broadcast")
}

// Publish queues entry for broadcast. When the queue is full the entry is
// dropped from the live feed; it is already persisted.
func (h *Hub) Publish(entry models.ActivityLog) {
	select {
	case h.broadcast <- entry:
	default:
		h.logger.Warn().Str("action", entry.Action).Msg("Activity stream queue full, entry not broadcast")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
