package coordinator

import (
	"maps"
	"slices"
	"sync"
)

// Subscriber is one attached push connection. A viewer may hold several.
type Subscriber struct {
	ViewerID string
	C        chan []byte
}

// Hub is the in-process roster of push connections, keyed by game ID. It
// only affects delivery; the game record never depends on it.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscriber]struct{}),
	}
}

// Attach registers a push connection for viewerID on gameID.
func (h *Hub) Attach(gameID, viewerID string) *Subscriber {
	s := &Subscriber{ViewerID: viewerID, C: make(chan []byte, 16)}
	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*Subscriber]struct{})
	}
	h.subs[gameID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Detach removes a push connection. Safe to call more than once.
func (h *Hub) Detach(gameID string, s *Subscriber) {
	h.mu.Lock()
	delete(h.subs[gameID], s)
	if len(h.subs[gameID]) == 0 {
		delete(h.subs, gameID)
	}
	h.mu.Unlock()
}

// Subscribers returns a snapshot of the connections attached to gameID.
func (h *Hub) Subscribers(gameID string) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Collect(maps.Keys(h.subs[gameID]))
}

// Count reports how many connections are attached to gameID.
func (h *Hub) Count(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

// send delivers data without blocking. Slow subscribers miss the message
// and catch up on their next poll.
func send(s *Subscriber, data []byte) bool {
	select {
	case s.C <- data:
		return true
	default:
		return false
	}
}
