package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"lexpost/internal/domain"
)

// Client is one websocket connection bound to a verified user.
type Client struct {
	UserID uint
	Staff  bool // receives every staff-visible event, not only the user's own
	Send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func NewClient(userID uint, staff bool) *Client {
	return &Client{UserID: userID, Staff: staff, Send: make(chan []byte, 256)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub routes change events to the owner's connections and, for staff-visible
// events, to every staff connection. It satisfies service.EventPublisher.
type Hub struct {
	mu     sync.RWMutex
	byUser map[uint]map[*Client]struct{}
	staff  map[*Client]struct{}
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		byUser: make(map[uint]map[*Client]struct{}),
		staff:  make(map[*Client]struct{}),
		log:    log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
	if c.Staff {
		h.staff[c] = struct{}{}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.staff, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// Publish delivers ev to local connections.
func (h *Hub) Publish(_ context.Context, ev domain.ChangeEvent) {
	h.Deliver(ev)
}

// Deliver fans ev out. Slow clients with a full buffer miss the event; they
// resynchronise by refetching and merging on version.
func (h *Hub) Deliver(ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode change event", "type", ev.Type, "entity_id", ev.EntityID, "error", err)
		return
	}
	for _, c := range h.recipients(ev) {
		if !c.offer(data) {
			h.log.Debug("dropping event for slow client", "user_id", c.UserID, "type", ev.Type)
		}
	}
}

func (h *Hub) recipients(ev domain.ChangeEvent) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]struct{})
	var out []*Client
	for c := range h.byUser[ev.OwnerID] {
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if ev.StaffVisible {
		for c := range h.staff {
			if _, ok := seen[c]; !ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byUser {
		n += len(m)
	}
	return n
}
