package handlers

import "sync"

// Envelope types pushed to WebSocket clients.
const (
	wsTypeDevice     = "device"
	wsTypeConnection = "connection"
)

const wsClientBuffer = 32

// wsHub fans snapshot changes out to every open WebSocket. A client that
// falls behind loses messages instead of blocking the bus callbacks.
type wsHub struct {
	mu      sync.Mutex
	clients map[chan wsEnvelope]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[chan wsEnvelope]struct{})}
}

func (h *wsHub) add() chan wsEnvelope {
	ch := make(chan wsEnvelope, wsClientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *wsHub) remove(ch chan wsEnvelope) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *wsHub) broadcast(env wsEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- env:
		default:
		}
	}
}

func (h *wsHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
