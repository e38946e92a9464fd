package services

import (
	"sync"
)

// Hub fans events out to subscribed clients keyed by client id.
type Hub[T any] struct {
	clients map[string]chan T
	buffer  int
	latest  bool
	mu      sync.RWMutex
}

// NewHub creates a hub whose client channels hold up to buffer events. Events
// that do not fit are dropped for that client.
func NewHub[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub[T]{
		clients: make(map[string]chan T),
		buffer:  buffer,
	}
}

// NewLatestHub creates a hub that keeps only the most recent event per client:
// a publish replaces whatever the client has not consumed yet.
func NewLatestHub[T any]() *Hub[T] {
	h := NewHub[T](1)
	h.latest = true
	return h
}

// Subscribe registers a client and returns its event channel. Re-subscribing
// an existing id closes the previous channel.
func (h *Hub[T]) Subscribe(clientID string) <-chan T {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	ch := make(chan T, h.buffer)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub[T]) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts event to all clients without blocking.
func (h *Hub[T]) Publish(event T) {
	if h.latest {
		h.mu.Lock()
		defer h.mu.Unlock()
	} else {
		h.mu.RLock()
		defer h.mu.RUnlock()
	}

	for _, ch := range h.clients {
		if h.latest {
			select {
			case <-ch:
			default:
			}
		}
		select {
		case ch <- event:
		default:
			// slow client
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub[T]) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes every client.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}
