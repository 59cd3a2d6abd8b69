package websocket

import (
	"log/slog"
	"sync"
)

// Hub is the connection registry: it maps each user to the set of open
// channels for that user's devices. A client belongs to at most one user and
// joins the registry only after its handshake authenticates.
type Hub struct {
	mu      sync.RWMutex
	users   map[string]map[*Client]struct{}
	logger  *slog.Logger
	clients int
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		users:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds an authenticated client to the user's connection set,
// creating the set on first registration. The client's user binding is set
// here, under the hub lock, so a concurrent unregister can never see a
// half-registered client.
func (h *Hub) Register(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.userID = userID
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	if _, ok := set[c]; !ok {
		set[c] = struct{}{}
		h.clients++
	}
}

// Unregister removes a client from its user's set and closes its send
// channel. Safe to call for clients that never authenticated and safe to
// call twice. Empty sets are left in place; the map is bounded by the number
// of distinct users seen over the process lifetime.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.users[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		h.clients--
		close(c.send)
	}
}

// SendToUser delivers data to every open channel registered for the user.
// A client whose send buffer is full is skipped rather than blocked on, so
// one stalled device cannot hold up delivery to the others.
func (h *Hub) SendToUser(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.users[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("send buffer full, dropping message", "user_id", userID)
		}
	}
}

// UserIDs returns the users currently present in the registry.
func (h *Hub) UserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.users))
	for id, set := range h.users {
		if len(set) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClientCount returns the number of registered clients across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients
}

// ClientCountFor returns the number of registered clients for one user.
func (h *Hub) ClientCountFor(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
